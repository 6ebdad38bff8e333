package triggers

import (
	"fmt"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/routing"
)

// RefError is an agent document naming a rule the catalog lacks.
type RefError struct {
	Doc  string
	Rule string
}

func (e RefError) Error() string {
	return fmt.Sprintf("%s: trigger_config references unknown rule %q", e.Doc, e.Rule)
}

// ValidateAgentRefs checks every trigger_config.rules id against the catalog.
func ValidateAgentRefs(c *Catalog, docs []*routing.AgentDoc) []RefError {
	var errs []RefError
	for _, doc := range docs {
		tc := doc.FrontMatter.TriggerConfig
		if tc.Enabled != nil && !*tc.Enabled {
			continue
		}
		for _, id := range tc.Rules {
			if _, ok := c.Rule(id); !ok {
				errs = append(errs, RefError{Doc: doc.Path, Rule: id})
			}
		}
	}
	return errs
}
