package usage

import (
	"slices"
	"sort"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
)

// Count is one ranked name.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Tally holds topic and path frequencies.
type Tally struct {
	Records int            `json:"records"`
	Skipped int            `json:"skipped"`
	Topics  map[string]int `json:"topics"`
	Paths   map[string]int `json:"paths"`
}

// TallyRecords folds records into frequencies.
func TallyRecords(records []Record) *Tally {
	t := &Tally{Records: len(records), Topics: make(map[string]int), Paths: make(map[string]int)}
	for _, r := range records {
		t.Topics[r.Topic]++
		if r.Path != "" {
			t.Paths[r.Path]++
		}
	}
	return t
}

// Load reads and tallies the usage log at path.
func Load(path string) (*Tally, error) {
	records, skipped, err := Read(path)
	if err != nil {
		return nil, err
	}
	t := TallyRecords(records)
	t.Skipped = skipped
	return t, nil
}

// TopK returns the k most frequent names, count descending then name
// ascending. k <= 0 returns all.
func TopK(counts map[string]int, k int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Report is the top-K view of a usage log.
type Report struct {
	Records int     `json:"records"`
	Skipped int     `json:"skipped"`
	Topics  []Count `json:"topics"`
	Paths   []Count `json:"paths"`
}

// BuildReport ranks the tallied topics and paths.
func BuildReport(t *Tally, k int) Report {
	return Report{
		Records: t.Records,
		Skipped: t.Skipped,
		Topics:  TopK(t.Topics, k),
		Paths:   TopK(t.Paths, k),
	}
}

// RankTopics orders topics by usage. Used topics come first, most used
// first with ties broken by lower-case name; unused topics follow in their
// current order. The result is a permutation of topics.
func RankTopics(topics []string, counts map[string]int) []string {
	var used, unused []string
	for _, t := range topics {
		if counts[t] > 0 {
			used = append(used, t)
		} else {
			unused = append(unused, t)
		}
	}
	sort.SliceStable(used, func(i, j int) bool {
		ci, cj := counts[used[i]], counts[used[j]]
		if ci != cj {
			return ci > cj
		}
		return strings.ToLower(used[i]) < strings.ToLower(used[j])
	})
	return append(used, unused...)
}

// Plan is the proposed on_demand order of an agent document.
type Plan struct {
	Agent   string   `json:"agent"`
	Before  []string `json:"before"`
	After   []string `json:"after"`
	Changed bool     `json:"changed"`
}

// Optimize computes the usage-ranked on_demand order of doc and, when
// write is set and the order changes, rewrites the document in place.
// Running it again with the same usage is a no-op.
func Optimize(doc *routing.AgentDoc, t *Tally, write bool) (*Plan, error) {
	before := doc.FrontMatter.ContextRoutes.Topics()
	after := RankTopics(before, t.Topics)
	plan := &Plan{Agent: doc.Path, Before: before, After: after, Changed: !slices.Equal(before, after)}
	if !write || !plan.Changed {
		return plan, nil
	}
	if err := doc.ReorderOnDemand(after); err != nil {
		return nil, err
	}
	if err := doc.Write(); err != nil {
		return nil, err
	}
	return plan, nil
}
