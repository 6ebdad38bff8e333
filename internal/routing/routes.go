package routing

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// ContextRoutes declares which documents to load, and when.
type ContextRoutes struct {
	AlwaysRead []string     `yaml:"always_read"`
	OnDemand   []TopicRoute `yaml:"on_demand"`
	ByScope    []ScopeRoute `yaml:"by_scope"`
}

// TopicRoute loads paths when the task touches a topic.
type TopicRoute struct {
	Topic string   `yaml:"topic"`
	Paths []string `yaml:"paths"`
}

// ScopeRoute loads documents while working inside a scope.
type ScopeRoute struct {
	Scope string   `yaml:"scope"`
	Read  []string `yaml:"read"`
}

// Topics returns the on_demand topic names in declaration order.
func (r ContextRoutes) Topics() []string {
	topics := make([]string, 0, len(r.OnDemand))
	for _, t := range r.OnDemand {
		topics = append(topics, t.Topic)
	}
	return topics
}

// ResolvePath turns a route entry into a repo-relative path. Entries
// starting with "/" are relative to the repository root, "./" and "../"
// entries to the agent document's directory, anything else to the root.
func ResolvePath(root, docPath, entry string) string {
	entry = strings.TrimSpace(entry)
	switch {
	case strings.HasPrefix(entry, "/"):
		return path.Clean(strings.TrimPrefix(entry, "/"))
	case strings.HasPrefix(entry, "./") || strings.HasPrefix(entry, "../"):
		dir := path.Dir(repo.Rel(root, docPath))
		return path.Clean(path.Join(dir, entry))
	default:
		return path.Clean(entry)
	}
}

// Resolve returns the documents to load for the given topics and scopes:
// always_read first, then matching on_demand routes, then matching by_scope
// routes, each in declaration order, without duplicates. Topics and scopes
// the manifest does not declare are returned separately.
func Resolve(root string, doc *AgentDoc, topics, scopes []string) (docs []string, unknown []string) {
	seen := make(map[string]bool)
	add := func(entries []string) {
		for _, e := range entries {
			p := ResolvePath(root, doc.Path, e)
			if !seen[p] {
				seen[p] = true
				docs = append(docs, p)
			}
		}
	}

	routes := doc.FrontMatter.ContextRoutes
	add(routes.AlwaysRead)

	wantTopic := toSet(topics)
	for _, t := range routes.OnDemand {
		if wantTopic[strings.ToLower(t.Topic)] {
			add(t.Paths)
			delete(wantTopic, strings.ToLower(t.Topic))
		}
	}
	wantScope := toSet(scopes)
	for _, s := range routes.ByScope {
		if wantScope[strings.ToLower(s.Scope)] {
			add(s.Read)
			delete(wantScope, strings.ToLower(s.Scope))
		}
	}

	for _, t := range topics {
		if wantTopic[strings.ToLower(t)] {
			unknown = append(unknown, "topic:"+t)
		}
	}
	for _, s := range scopes {
		if wantScope[strings.ToLower(s)] {
			unknown = append(unknown, "scope:"+s)
		}
	}
	return docs, unknown
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

// Problem is a route entry that does not resolve.
type Problem struct {
	Route  string `json:"route"`
	Entry  string `json:"entry"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.Route, p.Entry, p.Reason)
}

// Validate checks that every route entry names an existing file and that
// every glob matches at least one.
func Validate(root string, doc *AgentDoc) []Problem {
	var problems []Problem
	check := func(route string, entries []string) {
		for _, e := range entries {
			p := ResolvePath(root, doc.Path, e)
			if repo.IsGlob(p) {
				matches, err := repo.ExpandGlob(root, p)
				switch {
				case err != nil:
					problems = append(problems, Problem{Route: route, Entry: e, Path: p, Reason: err.Error()})
				case len(matches) == 0:
					problems = append(problems, Problem{Route: route, Entry: e, Path: p, Reason: "glob matches no files"})
				}
				continue
			}
			if !repo.Exists(root, p) {
				problems = append(problems, Problem{Route: route, Entry: e, Path: p, Reason: "file not found"})
			}
		}
	}

	routes := doc.FrontMatter.ContextRoutes
	check("always_read", routes.AlwaysRead)
	for _, t := range routes.OnDemand {
		check("on_demand."+t.Topic, t.Paths)
	}
	for _, s := range routes.ByScope {
		check("by_scope."+s.Scope, s.Read)
	}
	return problems
}

// ReorderOnDemand rewrites the on_demand list in the given topic order.
// order must be a permutation of the current topics. Both the node tree
// and the typed view are updated.
func (d *AgentDoc) ReorderOnDemand(order []string) error {
	current := d.FrontMatter.ContextRoutes.Topics()
	byTopic := make(map[string]int, len(current))
	for i, t := range current {
		if _, dup := byTopic[t]; dup {
			return fmt.Errorf("%s: on_demand topic %q is declared more than once", d.Path, t)
		}
		byTopic[t] = i
	}
	if len(order) != len(current) {
		return fmt.Errorf("%s: reorder has %d topics, document has %d", d.Path, len(order), len(current))
	}

	seq := mappingValue(d.lookup("context_routes"), "on_demand")
	if seq == nil || seq.Kind != yaml.SequenceNode || len(seq.Content) != len(current) {
		return fmt.Errorf("%s: on_demand is not a list of topics", d.Path)
	}

	nodes := make([]*yaml.Node, 0, len(order))
	routes := make([]TopicRoute, 0, len(order))
	for _, t := range order {
		i, ok := byTopic[t]
		if !ok {
			return fmt.Errorf("%s: unknown or repeated topic %q", d.Path, t)
		}
		delete(byTopic, t)
		nodes = append(nodes, seq.Content[i])
		routes = append(routes, d.FrontMatter.ContextRoutes.OnDemand[i])
	}
	seq.Content = nodes
	d.FrontMatter.ContextRoutes.OnDemand = routes
	return nil
}
