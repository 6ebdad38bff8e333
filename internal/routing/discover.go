package routing

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// AgentDocName is the file name of agent documents.
const AgentDocName = "AGENTS.md"

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"tmp":          true,
	"__pycache__":  true,
	".venv":        true,
}

// FindAgentDocs returns the slash-separated, root-relative paths of every
// agent document in the repository, sorted. The root document comes first.
func FindAgentDocs(root string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != AgentDocName {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		docs = append(docs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool {
		if (docs[i] == AgentDocName) != (docs[j] == AgentDocName) {
			return docs[i] == AgentDocName
		}
		return docs[i] < docs[j]
	})
	return docs, nil
}
