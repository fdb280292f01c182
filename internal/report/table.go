package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
)

const banner = "=================="

// WriteTable renders snap as an aligned grid under a title banner.
//
// Columns follow profiler.GridHeader. Numbers use English digit grouping and
// times are nanoseconds. Unset min or max cells print as N/A.
func WriteTable(w io.Writer, title string, snap *profiler.Snapshot) error {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", banner, title)
	p.Fprintf(&b, "Window: %s .. %s (%v)\n", snap.WindowStart().Format("15:04:05.000"),
		snap.WindowEnd().Format("15:04:05.000"), snap.Interval().Round(time.Millisecond))
	fmt.Fprintf(&b, "%s\n", banner)

	if snap.Len() == 0 {
		b.WriteString("No blocks recorded.\n")
		b.WriteString(banner + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(profiler.GridHeader, "\t")+"\t")
	for _, r := range snap.Sorted() {
		cells := []string{
			r.BlockName,
			p.Sprintf("%d", r.Invocations),
			p.Sprintf("%d", r.SelfTime),
			p.Sprintf("%d", r.SelfTimeAvg()),
			minText(p, r.SelfTimeMin),
			maxText(p, r.SelfTimeMax),
			p.Sprintf("%d", r.WallTime),
			p.Sprintf("%d", r.WallTimeAvg()),
			minText(p, r.WallTimeMin),
			maxText(p, r.WallTimeMax),
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	p.Fprintf(&b, "%s\n%d blocks, %d invocations\n", banner, snap.Len(), snap.TotalInvocations())

	_, err := io.WriteString(w, b.String())
	return err
}

func minText(p *message.Printer, v int64) string {
	if v == math.MaxInt64 {
		return profiler.NotAvailable
	}
	return p.Sprintf("%d", v)
}

func maxText(p *message.Printer, v int64) string {
	if v <= 0 {
		return profiler.NotAvailable
	}
	return p.Sprintf("%d", v)
}
