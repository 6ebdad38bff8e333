// Package health provides the metric probes behind the repository health
// score.
//
// # Probes
//
// A probe measures one metric of the scoring model. It inspects the
// repository (and, for delegated checks, the output of a command) and
// returns a MetricResult with the observed value plus any Issues it found.
// Probes never assign points: the engine converts values into points with
// the metric's scoring table.
//
//	type AgentDocLinesProbe struct{}
//
//	func (p *AgentDocLinesProbe) Check(ctx context.Context, rc *RepoContext) (*MetricResult, error) {
//	    lines, err := repo.CountLines(rc.Path(rc.Settings.RootAgentDoc))
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &MetricResult{Name: p.Name(), Value: float64(lines), Unit: "lines"}, nil
//	}
//
// # Failure Handling
//
// A probe that cannot run returns an error. The engine records it on the
// metric (score 0, status ❌) and moves on; a probe error never aborts a
// run. Probes that shell out honor the context deadline, and a deadline
// overrun is reported as "timeout".
//
// # Registry
//
// Probes are registered by metric id:
//
//	reg := health.NewRegistry()
//	for _, p := range health.DefaultProbes() {
//	    _ = reg.Register(p)
//	}
//	probe, ok := reg.Get("doc_freshness")
//
// Metrics declared by the scoring model but missing from the registry
// score zero.
//
// # Standalone Checks
//
// The secret scanner, complexity analysis, coupling graph and doc freshness
// scan are exported on their own so CLI commands can run them without the
// scoring pipeline.
package health
