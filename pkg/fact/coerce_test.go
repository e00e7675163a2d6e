package fact

import (
	"testing"
	"time"
)

func TestParseISO8601(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "RFC3339",
			input: "2010-03-10T12:45:17Z",
			want:  time.Date(2010, 3, 10, 12, 45, 17, 0, time.UTC),
		},
		{
			name:  "RFC3339 with offset normalizes to UTC",
			input: "2010-03-10T12:45:17+02:00",
			want:  time.Date(2010, 3, 10, 10, 45, 17, 0, time.UTC),
		},
		{
			name:  "datetime without zone is UTC",
			input: "2010-03-10T12:45:17",
			want:  time.Date(2010, 3, 10, 12, 45, 17, 0, time.UTC),
		},
		{
			name:  "space-separated datetime",
			input: "2010-03-10 12:45:17",
			want:  time.Date(2010, 3, 10, 12, 45, 17, 0, time.UTC),
		},
		{
			name:  "date only parses to midnight",
			input: "2010-03-10",
			want:  time.Date(2010, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "not a date",
			input:   "yesterday",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseISO8601(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseISO8601(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		typ     FieldType
		raw     string
		want    any
		wantErr bool
	}{
		{
			name: "string passes through",
			typ:  TypeString,
			raw:  "HBA1C",
			want: "HBA1C",
		},
		{
			name: "empty string passes through",
			typ:  TypeString,
			raw:  "",
			want: "",
		},
		{
			name: "number",
			typ:  TypeNumber,
			raw:  "5.3",
			want: 5.3,
		},
		{
			name: "integer-looking number",
			typ:  TypeNumber,
			raw:  "70",
			want: 70.0,
		},
		{
			name:    "not a number",
			typ:     TypeNumber,
			raw:     "high",
			wantErr: true,
		},
		{
			name: "date",
			typ:  TypeDate,
			raw:  "2010-06-17T19:35:00Z",
			want: time.Date(2010, 6, 17, 19, 35, 0, 0, time.UTC),
		},
		{
			name:    "not a date",
			typ:     TypeDate,
			raw:     "5.3",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, ok := tt.want.(time.Time); ok {
				if !got.(time.Time).Equal(want) {
					t.Errorf("Coerce() = %v, want %v", got, want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Coerce() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}
