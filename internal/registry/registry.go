// Package registry loads the module registry and checks it for consistency.
//
// The registry is a declarative list of module instances and their
// dependency edges. Edges are induced from both sides: a module's upstream
// list and every other module's downstream list.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a module instance.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusWIP        Status = "wip"
	StatusArchived   Status = "archived"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDeprecated, StatusWIP, StatusArchived:
		return true
	}
	return false
}

// Entry is one module instance.
type Entry struct {
	ID         string   `yaml:"id" json:"id"`
	Type       string   `yaml:"type" json:"type,omitempty"`
	Path       string   `yaml:"path" json:"path"`
	Level      int      `yaml:"level" json:"level"`
	Status     Status   `yaml:"status" json:"status"`
	Version    string   `yaml:"version" json:"version,omitempty"`
	Owners     []string `yaml:"owners" json:"owners,omitempty"`
	Upstream   []string `yaml:"upstream" json:"upstream,omitempty"`
	Downstream []string `yaml:"downstream" json:"downstream,omitempty"`
	Docs       []string `yaml:"docs" json:"docs,omitempty"`

	// ContractVersion is the version of the module's published contract.
	ContractVersion string `yaml:"contract_version" json:"contract_version,omitempty"`
}

// Registry is the parsed registry document.
type Registry struct {
	Version string  `yaml:"version" json:"version,omitempty"`
	Modules []Entry `yaml:"modules" json:"modules"`
}

// Load reads a registry document. A missing file returns os.ErrNotExist
// (wrapped) so callers can distinguish "no registry" from a broken one.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	return Parse(data)
}

// Parse decodes registry YAML.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return &reg, nil
}

// IsNotExist reports whether err came from a missing registry file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Lookup returns the entry with the given id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	for _, e := range r.Modules {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// IDs returns every module id, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.Modules))
	for _, e := range r.Modules {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

// Graph builds the dependency graph induced by upstream and downstream
// lists. References to unknown ids are dropped; Check reports them.
func (r *Registry) Graph() *Graph {
	g := NewGraph()
	known := make(map[string]bool, len(r.Modules))
	for _, e := range r.Modules {
		known[e.ID] = true
		g.AddNode(e.ID)
	}
	for _, e := range r.Modules {
		for _, up := range e.Upstream {
			if known[up] {
				g.AddEdge(e.ID, up)
			}
		}
		for _, down := range e.Downstream {
			if known[down] {
				g.AddEdge(down, e.ID)
			}
		}
	}
	return g
}

// NormalizeVersion adds the "v" prefix semver expects.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// ValidVersion reports whether v is a semantic version, with or without
// the leading "v".
func ValidVersion(v string) bool {
	return semver.IsValid(NormalizeVersion(v))
}

// ContractCompatible reports whether a module's contract version shares the
// major version of the module itself. A module without a contract version
// is compatible by definition.
func (e Entry) ContractCompatible() bool {
	if e.ContractVersion == "" {
		return true
	}
	if !ValidVersion(e.Version) || !ValidVersion(e.ContractVersion) {
		return false
	}
	return semver.Major(NormalizeVersion(e.Version)) == semver.Major(NormalizeVersion(e.ContractVersion))
}
