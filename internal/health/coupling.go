package health

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// Coupling classes.
const (
	CouplingLow      = "low"
	CouplingMedium   = "medium"
	CouplingHigh     = "high"
	CouplingVeryHigh = "very_high"
)

var (
	pyModuleImportRe = regexp.MustCompile(`^\s*(?:from|import)\s+modules\.([A-Za-z0-9_]+)`)
	goModuleImportRe = regexp.MustCompile(`"[^"]*/modules/([A-Za-z0-9_\-]+)(?:/[^"]*)?"`)
)

// Classify maps a coupling value to its class.
func (t CouplingThresholds) Classify(v float64) string {
	switch {
	case v <= float64(t.Low):
		return CouplingLow
	case v <= float64(t.Medium):
		return CouplingMedium
	case v <= float64(t.High):
		return CouplingHigh
	default:
		return CouplingVeryHigh
	}
}

// ModuleCoupling is the coupling of one module.
type ModuleCoupling struct {
	Module string `json:"module"`
	FanOut int    `json:"fan_out"`
	FanIn  int    `json:"fan_in"`
	Total  int    `json:"total_coupling"`
	Class  string `json:"class"`
}

// CouplingReport is the module graph summary.
type CouplingReport struct {
	Modules       []ModuleCoupling `json:"modules"`
	AverageFanOut float64          `json:"average_fan_out"`
	Class         string           `json:"class"`
	Edges         int              `json:"edges"`
	Cycles        [][]string       `json:"cycles,omitempty"`
}

// BuildModuleGraph combines registry edges with module references found
// in source files under modules/. reg may be nil.
func BuildModuleGraph(root string, reg *registry.Registry, excludes []string) (*registry.Graph, error) {
	g := registry.NewGraph()
	dirToID := make(map[string]string)
	if reg != nil {
		g = reg.Graph()
		for _, e := range reg.Modules {
			if dir, ok := moduleDirName(e.Path); ok {
				dirToID[dir] = e.ID
			}
		}
	}
	nodeFor := func(dir string) string {
		if id, ok := dirToID[dir]; ok {
			return id
		}
		return dir
	}

	dirs, err := ModuleDirs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		from := nodeFor(filepath.Base(dir))
		g.AddNode(from)
		err := WalkFiles(root, dir, []string{".py", ".go"}, excludes, func(rel string) error {
			for _, ref := range moduleRefs(filepath.Join(root, filepath.FromSlash(rel))) {
				if to := nodeFor(ref); to != from {
					g.AddEdge(from, to)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// moduleDirName extracts X from a "modules/X[/...]" path.
func moduleDirName(p string) (string, bool) {
	p = strings.TrimPrefix(filepath.ToSlash(p), "./")
	parts := strings.Split(p, "/")
	if len(parts) >= 2 && parts[0] == repo.ModulesDir && parts[1] != "" {
		return parts[1], true
	}
	return "", false
}

func moduleRefs(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	re := pyModuleImportRe
	if strings.HasSuffix(path, ".go") {
		re = goModuleImportRe
	}
	var refs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		for _, m := range re.FindAllStringSubmatch(scanner.Text(), -1) {
			refs = append(refs, m[1])
		}
	}
	return refs
}

// AnalyzeCoupling summarizes fan-in and fan-out per module.
func AnalyzeCoupling(g *registry.Graph, thresholds CouplingThresholds) *CouplingReport {
	report := &CouplingReport{Edges: g.EdgeCount(), Cycles: g.Cycles()}
	total := 0
	for _, id := range g.Nodes() {
		mc := ModuleCoupling{Module: id, FanOut: g.FanOut(id), FanIn: g.FanIn(id)}
		mc.Total = mc.FanOut + mc.FanIn
		mc.Class = thresholds.Classify(float64(mc.Total))
		report.Modules = append(report.Modules, mc)
		total += mc.FanOut
	}
	if n := len(report.Modules); n > 0 {
		report.AverageFanOut = float64(total) / float64(n)
	}
	report.Class = thresholds.Classify(report.AverageFanOut)
	sort.SliceStable(report.Modules, func(i, j int) bool {
		return report.Modules[i].Total > report.Modules[j].Total
	})
	return report
}
