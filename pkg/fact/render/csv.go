package render

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"carelog/factstore/pkg/fact"
)

// CSVRenderer renders query reports to CSV. Fact listings emit one row
// per instance with the schema's fields as columns; grouped and scalar
// results emit the group key and aggregate value.
type CSVRenderer struct{}

// NewCSVRenderer creates a new CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Render writes a report to the provided writer in CSV format.
func (r *CSVRenderer) Render(ctx context.Context, report *Report, w io.Writer) error {
	cw := csv.NewWriter(w)

	var err error
	switch report.Set.Shape {
	case fact.ShapeFacts:
		err = r.renderFacts(cw, report)
	default:
		err = r.renderRows(cw, report)
	}
	if err != nil {
		return fact.NewRenderError("csv", report.Set.Len(), err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fact.NewRenderError("csv", report.Set.Len(), err)
	}
	return nil
}

func (r *CSVRenderer) renderFacts(cw *csv.Writer, report *Report) error {
	fieldNames := []string{}
	base := map[string]bool{"id": true, "created": true, "status": true}
	for _, name := range report.Schema.FieldNames() {
		if !base[name] {
			fieldNames = append(fieldNames, name)
		}
	}

	header := append([]string{"id", "record_id", "status", "created"}, fieldNames...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, f := range report.Set.Facts {
		row := []string{f.ID, f.RecordID, f.Status, f.Created.UTC().Format(time.RFC3339)}
		for _, name := range fieldNames {
			row = append(row, formatCell(f.Fields[name]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (r *CSVRenderer) renderRows(cw *csv.Writer, report *Report) error {
	group := report.Options.GroupField()
	var alias string
	if report.Options.DateGroup != nil {
		alias = report.Options.DateGroup.Unit.String()
	} else if report.Options.GroupBy != "" {
		alias = report.Options.GroupBy
	}

	header := []string{fact.AggregateKey}
	if alias != "" {
		header = []string{group, fact.AggregateKey}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range report.Set.Rows {
		var cells []string
		if alias != "" {
			cells = append(cells, formatCell(row[alias]))
		}
		cells = append(cells, formatCell(row[fact.AggregateKey]))
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	return nil
}

// formatCell renders a typed value for a CSV cell.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case int64:
		return fmt.Sprintf("%d", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
