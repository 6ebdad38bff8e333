package health

import (
	"fmt"
	"sort"
)

// Registry holds probes by metric id.
type Registry struct {
	probes map[string]Probe
	order  []string
}

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

// NewDefaultRegistry returns a registry with every built-in probe.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range DefaultProbes() {
		if err := r.Register(p); err != nil {
			panic(err) // built-in ids are unique
		}
	}
	return r
}

// Register adds a probe to the registry.
func (r *Registry) Register(probe Probe) error {
	name := probe.Name()
	if name == "" {
		return fmt.Errorf("probe has no name")
	}
	if _, exists := r.probes[name]; exists {
		return fmt.Errorf("probe %q already registered", name)
	}
	r.probes[name] = probe
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered probe by metric id.
func (r *Registry) Get(name string) (Probe, bool) {
	probe, ok := r.probes[name]
	return probe, ok
}

// List returns probe names in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// ByDimension returns the probes of one dimension, sorted by name.
func (r *Registry) ByDimension(dim Dimension) []Probe {
	var out []Probe
	for _, name := range r.order {
		if p := r.probes[name]; p.Dimension() == dim {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DefaultProbes returns one instance of every built-in probe.
func DefaultProbes() []Probe {
	return []Probe{
		// code_quality
		&LintProbe{},
		&CoverageProbe{},
		&ComplexityProbe{},
		&TypeAnnotationProbe{},
		// documentation
		&ModuleDocCoverageProbe{},
		&DocFreshnessProbe{},
		&DocStyleProbe{},
		&DocScriptSyncProbe{},
		// architecture
		&DependencyClarityProbe{},
		&CouplingProbe{},
		&ContractCompatProbe{},
		&RegistryConsistencyProbe{},
		// ai_friendliness
		&AgentDocLinesProbe{},
		&AlwaysReadLinesProbe{},
		&AlwaysReadFilesProbe{},
		&DocRoleClarityProbe{},
		&ModuleDocCompletenessProbe{},
		&WorkflowCoverageProbe{},
		&ScriptAutomationProbe{},
		// operations
		&MigrationProbe{},
		&ConfigComplianceProbe{},
		&ObservabilityProbe{},
		&SecurityHygieneProbe{},
	}
}
