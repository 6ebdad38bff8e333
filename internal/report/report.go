// Package report renders health reports as Markdown, JSON, CSV, console
// text and Prometheus textfile metrics.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// DefaultTopSuggestions bounds the suggestions section.
const DefaultTopSuggestions = 20

// Roadmap bucket sizes.
const (
	MaxImmediate = 5
	MaxShortTerm = 10
	MaxLongTerm  = 10
)

// stampLayout names the artifacts of one run.
const stampLayout = "20060102-150405"

// Artifacts are the files written for one run.
type Artifacts struct {
	Markdown string `json:"markdown"`
	JSON     string `json:"json"`
	CSV      string `json:"csv"`
}

// Paths returns the artifact paths in write order.
func (a Artifacts) Paths() []string {
	return []string{a.Markdown, a.JSON, a.CSV}
}

// Writer writes the three report artifacts into Dir.
type Writer struct {
	Dir            string
	TopSuggestions int

	// WithContext renders the source lines around each issue.
	WithContext bool
}

// NewWriter creates a writer for dir.
func NewWriter(dir string, topSuggestions int) *Writer {
	if topSuggestions <= 0 {
		topSuggestions = DefaultTopSuggestions
	}
	return &Writer{Dir: dir, TopSuggestions: topSuggestions}
}

// ArtifactsFor returns the paths WriteAll uses for r.
func (w *Writer) ArtifactsFor(r *health.HealthReport) Artifacts {
	base := filepath.Join(w.Dir, "health-report-"+r.Timestamp.UTC().Format(stampLayout))
	return Artifacts{Markdown: base + ".md", JSON: base + ".json", CSV: base + ".csv"}
}

// WriteAll renders every artifact first and writes them only when all
// three rendered, so a failed run leaves no partial report behind.
func (w *Writer) WriteAll(r *health.HealthReport) (Artifacts, error) {
	arts := w.ArtifactsFor(r)

	jsonData, err := MarshalJSON(r)
	if err != nil {
		return Artifacts{}, err
	}
	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, r.Issues); err != nil {
		return Artifacts{}, err
	}
	md := RenderMarkdown(r, MarkdownOptions{
		TopSuggestions: w.TopSuggestions,
		WithContext:    w.WithContext,
		Attachments:    []string{filepath.Base(arts.JSON), filepath.Base(arts.CSV)},
	})

	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("creating reports dir: %w", err)
	}
	for path, data := range map[string][]byte{
		arts.Markdown: []byte(md),
		arts.JSON:     jsonData,
		arts.CSV:      csvBuf.Bytes(),
	} {
		if err := repo.WriteFileAtomic(path, data, 0644); err != nil {
			return Artifacts{}, err
		}
	}
	return arts, nil
}

// ErrNoReport is returned by LatestJSON when dir holds no JSON report.
var ErrNoReport = errors.New("no health report found")

// LatestJSON returns the newest JSON report in dir. Artifact names carry a
// sortable UTC stamp, so the lexically greatest name is the newest.
func LatestJSON(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "health-report-*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s (run health-check first)", ErrNoReport, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
