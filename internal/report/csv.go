package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// CSVHeader is the fixed column order of the CSV report.
var CSVHeader = []string{
	"Rule", "Level", "Category", "Message", "File", "Line",
	"Suggestion", "Fix Command", "Estimated Time", "Priority",
}

// WriteCSV writes one row per issue.
func WriteCSV(w io.Writer, issues []types.Issue) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, i := range issues {
		line := ""
		if i.Line > 0 {
			line = strconv.Itoa(i.Line)
		}
		row := []string{
			i.Rule, string(i.Level), string(i.Category), i.Message, i.File, line,
			i.Suggestion, i.FixCommand, i.EstimatedTime, strconv.Itoa(i.Priority),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
