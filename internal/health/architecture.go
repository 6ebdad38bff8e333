package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/registry"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// requireRegistry returns the loaded registry or the reason it is missing.
func requireRegistry(rc *RepoContext) (*registry.Registry, error) {
	if rc.Registry != nil {
		return rc.Registry, nil
	}
	if rc.RegistryErr != nil {
		return nil, rc.RegistryErr
	}
	return nil, fmt.Errorf("no registry at %s", rc.Settings.Registry)
}

// DependencyClarityProbe scores an acyclic registry and valid manifests.
type DependencyClarityProbe struct{}

// Name implements Probe.
func (p *DependencyClarityProbe) Name() string { return "dependency_clarity" }

// Dimension implements Probe.
func (p *DependencyClarityProbe) Dimension() Dimension { return DimensionArchitecture }

// Philosophy implements Probe.
func (p *DependencyClarityProbe) Philosophy() string {
	return "Dependencies should point one way and be written down. Cycles and broken manifests hide how the system fits together."
}

// Cost implements Probe.
func (p *DependencyClarityProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 200 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *DependencyClarityProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	result := newResult(p, 0, "points")

	acyclic := false
	if reg, err := requireRegistry(rc); err != nil {
		result.SetDetail("registry", err.Error())
	} else {
		cycles := reg.Graph().Cycles()
		acyclic = len(cycles) == 0
		result.SetDetail("cycles", len(cycles))
	}
	if acyclic {
		result.Value += 50
	}

	manifests := CheckManifests(rc.Root)
	valid := len(manifests) > 0
	for _, m := range manifests {
		result.SetDetail(m.Path, m.Valid)
		if m.Valid {
			continue
		}
		valid = false
		issue := newIssue(p, "ARCH-009", types.LevelError, 65, "Dependency manifest %s is invalid: %s", m.Path, m.Error)
		issue.File = m.Path
		result.Issues = append(result.Issues, issue)
	}
	if len(manifests) == 0 {
		issue := newIssue(p, "ARCH-009", types.LevelWarning, 45, "No dependency manifest found")
		issue.Suggestion = "Declare dependencies in one of " + strings.Join(ManifestFiles, ", ")
		result.Issues = append(result.Issues, issue)
	}
	if valid {
		result.Value += 50
	}
	result.SetDetail("acyclic", acyclic)
	result.SetDetail("manifests_valid", valid)
	return result, nil
}

// CouplingProbe measures average module fan-out.
type CouplingProbe struct{}

// Name implements Probe.
func (p *CouplingProbe) Name() string { return "coupling_level" }

// Dimension implements Probe.
func (p *CouplingProbe) Dimension() Dimension { return DimensionArchitecture }

// Philosophy implements Probe.
func (p *CouplingProbe) Philosophy() string {
	return "A module that depends on everything can be changed by nobody. Keep fan-out low."
}

// Cost implements Probe.
func (p *CouplingProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: time.Second, RequiresFullScan: true, Category: CostModerate}
}

// Check implements Probe.
func (p *CouplingProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	g, err := BuildModuleGraph(rc.Root, rc.Registry, rc.Probes.Excludes)
	if err != nil {
		return nil, err
	}
	report := AnalyzeCoupling(g, rc.Probes.Coupling)

	result := newResult(p, Round2(report.AverageFanOut), "fan-out")
	result.SetDetail("modules", len(report.Modules))
	result.SetDetail("edges", report.Edges)
	result.SetDetail("class", report.Class)
	for _, m := range report.Modules {
		if m.Class != CouplingHigh && m.Class != CouplingVeryHigh {
			continue
		}
		issue := newIssue(p, "ARCH-010", types.LevelWarning, 50,
			"Module %s is %s coupled (fan-out %d, fan-in %d)", m.Module, strings.ReplaceAll(m.Class, "_", " "), m.FanOut, m.FanIn)
		issue.Suggestion = "Move shared code behind a contract or into a lower-level module"
		issue.EstimatedTime = "2-4 hours"
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// ContractCompatProbe measures the share of modules whose contract version
// matches the module's major version.
type ContractCompatProbe struct{}

// Name implements Probe.
func (p *ContractCompatProbe) Name() string { return "contract_compat" }

// Dimension implements Probe.
func (p *ContractCompatProbe) Dimension() Dimension { return DimensionArchitecture }

// Philosophy implements Probe.
func (p *ContractCompatProbe) Philosophy() string {
	return "A contract is a promise to downstream modules. Breaking it silently breaks them."
}

// Cost implements Probe.
func (p *ContractCompatProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 50 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *ContractCompatProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	reg, err := requireRegistry(rc)
	if err != nil {
		return nil, err
	}
	result := newResult(p, 0, "%")
	ok := 0
	for _, e := range reg.Modules {
		if e.ContractCompatible() {
			ok++
			continue
		}
		issue := newIssue(p, "ARCH-008", types.LevelError, 70,
			"Module %s version %s is incompatible with contract %s", e.ID, e.Version, e.ContractVersion)
		issue.File = repo.RegistryPath
		issue.Suggestion = "Bump the contract version with the module's major version, or restore compatibility"
		result.Issues = append(result.Issues, issue)
	}
	result.Value = Percent(ok, len(reg.Modules))
	result.SetDetail("modules", len(reg.Modules))
	result.SetDetail("compatible", ok)
	return result, nil
}

// RegistryConsistencyProbe measures the share of registry checks passed.
type RegistryConsistencyProbe struct{}

// Name implements Probe.
func (p *RegistryConsistencyProbe) Name() string { return "registry_consistency" }

// Dimension implements Probe.
func (p *RegistryConsistencyProbe) Dimension() Dimension { return DimensionArchitecture }

// Philosophy implements Probe.
func (p *RegistryConsistencyProbe) Philosophy() string {
	return "The registry is the map of the system. A wrong map is worse than none."
}

// Cost implements Probe.
func (p *RegistryConsistencyProbe) Cost() CostEstimate {
	return CostEstimate{EstimatedDuration: 50 * time.Millisecond, Category: CostCheap}
}

// Check implements Probe.
func (p *RegistryConsistencyProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
	reg, err := requireRegistry(rc)
	if err != nil {
		return nil, err
	}
	report := registry.Check(rc.Root, reg)
	result := newResult(p, report.Percentage(), "%")
	for _, name := range registry.Checks {
		result.SetDetail(name, report.Results[name])
	}
	result.Issues = report.Issues
	return result, nil
}
