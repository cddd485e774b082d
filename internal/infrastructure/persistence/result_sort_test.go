package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResultSort(t *testing.T) {
	tests := []struct {
		name      string
		column    string
		direction string
		want      string
	}{
		{"defaults", "", "", "processed_at DESC"},
		{"known column ascending", "work_date", "asc", "work_date ASC"},
		{"direction is case insensitive", "outcome", "  ASC ", "outcome ASC"},
		{"explicit desc", "created_at", "desc", "created_at DESC"},
		{"column is trimmed", "  work_date  ", "", "work_date DESC"},
		{"column is case sensitive", "WORK_DATE", "asc", "processed_at ASC"},
		{"unknown column", "calculation", "asc", "processed_at ASC"},
		{"unknown direction", "outcome", "sideways", "outcome DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResultSort(tt.column, tt.direction).Clause())
		})
	}
}

func TestParseResultSort_RejectsInjection(t *testing.T) {
	payloads := []string{
		"processed_at; DROP TABLE attendance_results;--",
		"processed_at' OR '1'='1",
		"work_date, (SELECT credential FROM punch_records)",
		"CASE WHEN 1=1 THEN outcome ELSE work_date END",
		"outcome/**/;DELETE FROM attendance_rules",
		"outcome\n; DROP TABLE work_shifts",
	}

	for _, payload := range payloads {
		sort := ParseResultSort(payload, payload)
		assert.Equal(t, "processed_at", sort.Column, payload)
		assert.Equal(t, "DESC", sort.Direction, payload)
	}
}
