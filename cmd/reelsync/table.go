package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// listing is a rounded table for the list-style commands: catalog entries,
// cached responses, scan results and probe verdicts.
type listing struct {
	tw      table.Writer
	columns int
}

func newListing(headers ...string) *listing {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return &listing{tw: tw, columns: len(headers)}
}

// row appends cells, padding short rows so every row spans the header.
func (l *listing) row(cells ...string) {
	r := make(table.Row, l.columns)
	for i := 0; i < l.columns && i < len(cells); i++ {
		r[i] = cells[i]
	}
	l.tw.AppendRow(r)
}

// numeric right-aligns the given 1-based columns. Headers stay left.
func (l *listing) numeric(columns ...int) *listing {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	l.tw.SetColumnConfigs(configs)
	return l
}

func (l *listing) String() string {
	return l.tw.Render()
}

// renderPairs renders a two-column key/value table without a header row.
func renderPairs(pairs [][2]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false
	for _, pair := range pairs {
		tw.AppendRow(table.Row{pair[0], pair[1]})
	}
	return tw.Render()
}
