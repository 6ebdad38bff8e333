package healthcheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/health"
	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/repo"
)

// LoadHistory reads the run history, oldest first. A missing file is an
// empty history.
func LoadHistory(path string) ([]health.HealthReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var runs []health.HealthReport
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	return runs, nil
}

// AppendHistory adds r to the history at path, keeping the newest limit
// entries. The file is replaced atomically.
func AppendHistory(path string, r *health.HealthReport, limit int) error {
	runs, err := LoadHistory(path)
	if err != nil {
		return err
	}
	runs = append(runs, *r)
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	return repo.WriteFileAtomic(path, append(data, '\n'), 0644)
}
