// Package chart renders a Snapshot as an HTML page of bar charts.
package chart

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// MaxBlocks caps the number of bars per chart; the blocks with the most self
// time are kept.
const MaxBlocks = 50

// Render writes an HTML page with a time chart (self and wall milliseconds)
// and an invocation chart for snap.
func Render(w io.Writer, title string, snap *profiler.Snapshot) error {
	recs := topBySelf(snap.Records(), MaxBlocks)
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.BlockName
	}

	subtitle := fmt.Sprintf("%d blocks, window %v", snap.Len(), snap.Interval().Round(time.Millisecond))

	times := charts.NewBar()
	times.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	times.SetXAxis(names).
		AddSeries("self", barItems(recs, func(r recorder.Record) float64 { return millis(r.SelfTime) })).
		AddSeries("wall", barItems(recs, func(r recorder.Record) float64 { return millis(r.WallTime) })).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))

	calls := charts.NewBar()
	calls.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Invocations"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	calls.SetXAxis(names).
		AddSeries("invocations", barItems(recs, func(r recorder.Record) float64 { return float64(r.Invocations) }))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(times, calls)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// topBySelf orders recs by self time, largest first, ties by name, and keeps n.
func topBySelf(recs []recorder.Record, n int) []recorder.Record {
	slices.SortFunc(recs, func(a, b recorder.Record) int {
		if c := cmp.Compare(b.SelfTime, a.SelfTime); c != 0 {
			return c
		}
		return cmp.Compare(a.BlockName, b.BlockName)
	})
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

func barItems(recs []recorder.Record, value func(recorder.Record) float64) []opts.BarData {
	out := make([]opts.BarData, len(recs))
	for i, r := range recs {
		out[i] = opts.BarData{Name: r.BlockName, Value: value(r)}
	}
	return out
}

func millis(ns int64) float64 {
	return float64(ns) / float64(time.Millisecond)
}
