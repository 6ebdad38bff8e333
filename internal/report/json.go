package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
)

// MarshalJSON renders the JSON report.
func MarshalJSON(r *health.HealthReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the JSON report to w.
func WriteJSON(w io.Writer, r *health.HealthReport) error {
	data, err := MarshalJSON(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadJSON loads a report written by WriteJSON or WriteAll.
func ReadJSON(path string) (*health.HealthReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r health.HealthReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
