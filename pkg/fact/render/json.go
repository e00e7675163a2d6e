package render

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"carelog/factstore/pkg/fact"
)

// jsonFact is the wire form of one fact instance.
type jsonFact struct {
	ID       string         `json:"id"`
	RecordID string         `json:"record_id,omitempty"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Created  time.Time      `json:"created"`
	Fields   map[string]any `json:"fields"`
}

// jsonReport is the wire form of a full query response.
type jsonReport struct {
	RecordType string `json:"record_type"`
	TotalCount int    `json:"total_count"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	OrderBy    string `json:"order_by,omitempty"`
	Results    []any  `json:"results"`
	Next       string `json:"next,omitempty"`
}

// JSONRenderer renders query reports to JSON.
type JSONRenderer struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONRenderer creates a new JSON renderer.
func NewJSONRenderer(pretty bool) *JSONRenderer {
	return &JSONRenderer{Pretty: pretty}
}

// Render writes a report to the provided writer in JSON format. All three
// result shapes render under a uniform "results" sequence: fact instances,
// group rows, or the one-element scalar wrapper.
func (r *JSONRenderer) Render(ctx context.Context, report *Report, w io.Writer) error {
	payload := jsonReport{
		RecordType: report.Schema.Type,
		TotalCount: report.TotalCount,
		Next:       report.Next,
		Results:    []any{},
	}
	if report.Options != nil {
		payload.Limit = report.Options.Limit
		payload.Offset = report.Options.Offset
		payload.OrderBy = report.Options.OrderBy
	}

	switch report.Set.Shape {
	case fact.ShapeFacts:
		for _, f := range report.Set.Facts {
			payload.Results = append(payload.Results, jsonFact{
				ID:       f.ID,
				RecordID: f.RecordID,
				Type:     f.Type,
				Status:   f.Status,
				Created:  f.Created,
				Fields:   f.Fields,
			})
		}
	default:
		for _, row := range report.Set.Rows {
			payload.Results = append(payload.Results, row)
		}
	}

	var data []byte
	var err error
	if r.Pretty {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		return fact.NewRenderError("json", report.Set.Len(), err)
	}

	if _, err := w.Write(data); err != nil {
		return fact.NewRenderError("json", report.Set.Len(), err)
	}
	return nil
}
