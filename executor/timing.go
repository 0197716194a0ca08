//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package executor

import (
	"fmt"
	"io"
	"time"

	"github.com/markkurossi/mpsi/p2p"
	"github.com/markkurossi/tabulate"
)

// FileSize specifies a transfer size.
type FileSize uint64

func (s FileSize) String() string {
	if s > 1000*1000*1000*1000 {
		return fmt.Sprintf("%dTB", s/(1000*1000*1000*1000))
	} else if s > 1000*1000*1000 {
		return fmt.Sprintf("%dGB", s/(1000*1000*1000))
	} else if s > 1000*1000 {
		return fmt.Sprintf("%dMB", s/(1000*1000))
	} else if s > 1000 {
		return fmt.Sprintf("%dkB", s/1000)
	}
	return fmt.Sprintf("%dB", s)
}

// Timing records task phase samples and renders a profiling report.
type Timing struct {
	Start   time.Time
	Samples []*Sample
}

// NewTiming creates a new Timing instance.
func NewTiming() *Timing {
	return &Timing{
		Start: time.Now(),
	}
}

// Sample adds a timing sample with label and data columns. The
// sample starts where the previous sample ended.
func (t *Timing) Sample(label string, cols []string) *Sample {
	start := t.Start
	if len(t.Samples) > 0 {
		start = t.Samples[len(t.Samples)-1].End
	}
	sample := &Sample{
		Label: label,
		Start: start,
		End:   time.Now(),
		Cols:  cols,
	}
	t.Samples = append(t.Samples, sample)
	return sample
}

// Total returns the duration from start to the end of the last
// sample.
func (t *Timing) Total() time.Duration {
	if len(t.Samples) == 0 {
		return 0
	}
	return t.Samples[len(t.Samples)-1].End.Sub(t.Start)
}

// Print prints the profiling report to w.
func (t *Timing) Print(w io.Writer, stats p2p.IOStats) {
	if len(t.Samples) == 0 {
		return
	}

	sent := stats.Sent.Load()
	received := stats.Recvd.Load()
	flushed := stats.Flushed.Load()

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Op").SetAlign(tabulate.ML)
	tab.Header("Time").SetAlign(tabulate.MR)
	tab.Header("%").SetAlign(tabulate.MR)
	tab.Header("Xfer").SetAlign(tabulate.MR)

	total := t.Total()
	for _, sample := range t.Samples {
		row := tab.Row()
		row.Column(sample.Label)

		duration := sample.Duration()
		row.Column(duration.String())
		row.Column(percent(duration, total))

		for _, col := range sample.Cols {
			row.Column(col)
		}
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtBold)
	row.Column(total.String()).SetFormat(tabulate.FmtBold)
	row.Column("").SetFormat(tabulate.FmtBold)
	row.Column(FileSize(sent + received).String()).SetFormat(tabulate.FmtBold)

	if sent+received > 0 {
		row = tab.Row()
		row.Column("├╴Sent").SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(
			fmt.Sprintf("%.2f%%", float64(sent)/float64(sent+received)*100)).
			SetFormat(tabulate.FmtItalic)
		row.Column(FileSize(sent).String()).SetFormat(tabulate.FmtItalic)

		row = tab.Row()
		row.Column("├╴Rcvd").SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column(
			fmt.Sprintf("%.2f%%",
				float64(received)/float64(sent+received)*100)).
			SetFormat(tabulate.FmtItalic)
		row.Column(FileSize(received).String()).SetFormat(tabulate.FmtItalic)

		row = tab.Row()
		row.Column("╰╴Flcd").SetFormat(tabulate.FmtItalic)
		row.Column("")
		row.Column("")
		row.Column(fmt.Sprintf("%v", flushed)).SetFormat(tabulate.FmtItalic)
	}

	tab.Print(w)
}

func percent(d, total time.Duration) string {
	if total <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(d)/float64(total)*100)
}

// Sample contains information about one timing sample.
type Sample struct {
	Label string
	Start time.Time
	End   time.Time
	Cols  []string
}

// Duration returns the sample duration.
func (s *Sample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
