// Package routing reads and rewrites the context routes declared in agent
// documents' YAML front matter.
package routing

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// ErrNoFrontMatter is returned when a document does not start with a
// "---" delimited YAML block.
var ErrNoFrontMatter = errors.New("no front matter")

// FrontMatter is the typed view of an agent document's header.
type FrontMatter struct {
	SpecVersion   string        `yaml:"spec_version"`
	AgentID       string        `yaml:"agent_id"`
	Role          string        `yaml:"role"`
	ModuleType    string        `yaml:"module_type"`
	Level         int           `yaml:"level"`
	ContextRoutes ContextRoutes `yaml:"context_routes"`
	TriggerConfig TriggerConfig `yaml:"trigger_config"`
}

// TriggerConfig links an agent document to trigger catalog rules.
type TriggerConfig struct {
	Enabled *bool    `yaml:"enabled"`
	Rules   []string `yaml:"rules"`
}

// AgentDoc is a parsed agent document. The YAML node tree is kept so a
// rewrite preserves key order and comments.
type AgentDoc struct {
	Path        string
	FrontMatter FrontMatter
	Body        []byte

	node *yaml.Node
	keys []string
}

// SplitFrontMatter separates the YAML header from the body. The header
// must open on the first line and close with a line that is exactly "---".
func SplitFrontMatter(data []byte) (header, body []byte, err error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	first, rest, ok := cutLine(data)
	if !ok || string(bytes.TrimRight(first, "\r")) != "---" {
		return nil, data, ErrNoFrontMatter
	}

	offset := 0
	for len(rest[offset:]) > 0 {
		line, remaining, _ := cutLine(rest[offset:])
		trimmed := string(bytes.TrimRight(line, "\r"))
		if trimmed == "---" || trimmed == "..." {
			header = rest[:offset]
			body = remaining
			return header, body, nil
		}
		offset = len(rest) - len(remaining)
		if len(remaining) == 0 {
			break
		}
	}
	return nil, data, fmt.Errorf("unterminated front matter: %w", ErrNoFrontMatter)
}

func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, len(b) > 0
}

// ParseAgentDoc parses document bytes. path is recorded for resolution of
// "./" routes and for error messages.
func ParseAgentDoc(path string, data []byte) (*AgentDoc, error) {
	header, body, err := SplitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(header, &node); err != nil {
		return nil, fmt.Errorf("%s: parsing front matter: %w", path, err)
	}
	doc := &AgentDoc{Path: path, Body: body, node: &node}

	mapping := doc.mapping()
	if mapping == nil {
		return doc, nil // empty header
	}
	if err := mapping.Decode(&doc.FrontMatter); err != nil {
		return nil, fmt.Errorf("%s: decoding front matter: %w", path, err)
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		doc.keys = append(doc.keys, mapping.Content[i].Value)
	}
	return doc, nil
}

// ReadAgentDoc reads and parses an agent document.
func ReadAgentDoc(path string) (*AgentDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent doc: %w", err)
	}
	return ParseAgentDoc(path, data)
}

// Keys returns the top-level front-matter keys in document order.
func (d *AgentDoc) Keys() []string {
	return append([]string(nil), d.keys...)
}

// HasKey reports whether the front matter declares key with a non-null value.
func (d *AgentDoc) HasKey(key string) bool {
	if v := d.lookup(key); v != nil {
		return !(v.Kind == yaml.ScalarNode && (v.Tag == "!!null" || v.Value == ""))
	}
	return false
}

func (d *AgentDoc) mapping() *yaml.Node {
	if d.node == nil || len(d.node.Content) == 0 {
		return nil
	}
	m := d.node.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	return m
}

func (d *AgentDoc) lookup(key string) *yaml.Node {
	return mappingValue(d.mapping(), key)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// Render re-emits the document: the front matter from the node tree,
// then the body unchanged.
func (d *AgentDoc) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	if d.mapping() != nil {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d.node); err != nil {
			return nil, fmt.Errorf("encoding front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding front matter: %w", err)
		}
	}
	buf.WriteString("---\n")
	buf.Write(d.Body)
	return buf.Bytes(), nil
}

// Write renders the document to its path with a temp-then-rename write.
func (d *AgentDoc) Write() error {
	data, err := d.Render()
	if err != nil {
		return err
	}
	info, statErr := os.Stat(d.Path)
	perm := os.FileMode(0644)
	if statErr == nil {
		perm = info.Mode().Perm()
	}
	return repo.WriteFileAtomic(d.Path, data, perm)
}
