package scoring

import (
	_ "embed"
	"fmt"
)

// DefaultModelYAML is the scoring model shipped with repokit. It is written
// to doc/process/HEALTH_CHECK_MODEL.yaml by "repokit model --write".
//
//go:embed default_model.yaml
var DefaultModelYAML []byte

// Default parses the shipped model.
func Default() *Model {
	m, err := Parse("default_model.yaml", DefaultModelYAML)
	if err != nil {
		panic(fmt.Sprintf("shipped scoring model is invalid: %v", err))
	}
	return m
}
