package domain

import "time"

type ReportKind string

const (
	ReportPie   ReportKind = "pie"
	ReportStack ReportKind = "stack"
	ReportTable ReportKind = "table"
)

type ReportDescriptor struct {
	Name        string
	Category    string
	Title       string
	Description string
	Kind        ReportKind
}

type PieSlice struct {
	Label string
	Value int
}

// ChartPoint is one bucket of a stacked chart. X is the bucket offset, -1
// being the most recent bucket.
type ChartPoint struct {
	X int
	Y int
}

type Series struct {
	Label string
	Data  []ChartPoint
}

func (s Series) Total() int {
	total := 0
	for _, p := range s.Data {
		total += p.Y
	}
	return total
}

type Table struct {
	Columns []string
	Rows    [][]string
}

// Report is the aggregated result of one report run. NoData is set when the
// audit log could not be read.
type Report struct {
	Descriptor  ReportDescriptor
	Range       TimeRange
	GeneratedAt time.Time
	Pie         []PieSlice
	Series      []Series
	Table       *Table
	NoData      bool
}

func (r Report) Empty() bool {
	if r.NoData {
		return true
	}
	switch r.Descriptor.Kind {
	case ReportPie:
		return len(r.Pie) == 0
	case ReportStack:
		return len(r.Series) == 0
	default:
		return r.Table == nil || len(r.Table.Rows) == 0
	}
}
