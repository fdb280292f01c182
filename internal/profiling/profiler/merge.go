package profiler

import "github.com/btraceio/btrace-sub009/internal/profiling/recorder"

// merger folds per-Recorder record arrays into one array keyed by block name.
//
// The first non-empty array seeds the result and the name index; later
// arrays merge into an existing slot or extend the result. When the result
// is full its capacity grows by a quarter, rounded up.
type merger struct {
	records []recorder.Record
	index   map[string]int
}

func (m *merger) add(recs []recorder.Record) {
	if len(recs) == 0 {
		return
	}
	if m.index == nil {
		m.records = recs
		m.index = make(map[string]int, len(recs))
		for i := range recs {
			m.index[recs[i].BlockName] = i
		}
		return
	}

	for i := range recs {
		if slot, ok := m.index[recs[i].BlockName]; ok {
			m.records[slot].Merge(&recs[i])
			continue
		}
		if len(m.records) == cap(m.records) {
			m.grow()
		}
		m.index[recs[i].BlockName] = len(m.records)
		m.records = append(m.records, recs[i])
	}
}

func (m *merger) grow() {
	n := (cap(m.records)*5 + 3) / 4
	if n == cap(m.records) {
		n++
	}
	grown := make([]recorder.Record, len(m.records), n)
	copy(grown, m.records)
	m.records = grown
}
