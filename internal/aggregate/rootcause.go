package aggregate

import (
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

type rootCausePattern struct {
	id                  string
	title               string
	minIssues           int
	supports            func(i *types.Issue, text string) bool
	fixScript           string
	expectedImprovement string
	estimatedTime       string
}

// rootCauses is the fixed catalog. A cause fires only with at least
// minIssues supporting issues.
var rootCauses = []rootCausePattern{
	{
		id:        "missing_test_tooling",
		title:     "Test tooling is missing or not wired into make",
		minIssues: 3,
		supports: func(i *types.Issue, text string) bool {
			return ClusterOf(i) == ClusterTesting
		},
		fixScript: `mkdir -p tests
cat >> Makefile <<'MK'
test_coverage:
	pytest --cov=modules --cov-report=term
MK`,
		expectedImprovement: "+5-10 points",
		estimatedTime:       "1-2 hours",
	},
	{
		id:        "missing_module_doc_templates",
		title:     "Module instances were created without the doc template",
		minIssues: 3,
		supports: func(i *types.Issue, text string) bool {
			return ClusterOf(i) == ClusterDocumentation && strings.Contains(text, "module")
		},
		fixScript: `for m in modules/*/; do
  case "$m" in modules/_*) continue ;; esac
  mkdir -p "$m/doc"
  cp -n modules/_template/doc/*.md "$m/doc/"
done`,
		expectedImprovement: "+3-8 points",
		estimatedTime:       "30-60 minutes",
	},
	{
		id:        "missing_linter_config",
		title:     "No linter is configured",
		minIssues: 2,
		supports: func(i *types.Issue, text string) bool {
			return strings.Contains(text, "lint")
		},
		fixScript: `cat >> Makefile <<'MK'
lint:
	ruff check modules scripts
MK`,
		expectedImprovement: "+3-7 points",
		estimatedTime:       "30 minutes",
	},
	{
		id:        "hardcoded_secrets",
		title:     "Credentials are committed to the repository",
		minIssues: 1,
		supports: func(i *types.Issue, text string) bool {
			return ClusterOf(i) == ClusterSecrets
		},
		fixScript: `repokit secret-scan
printf '.env\n.env.*\n!.env.example\n*.pem\n*.key\n' >> .gitignore
git rm --cached --ignore-unmatch .env`,
		expectedImprovement: "+2-5 points",
		estimatedTime:       "30-60 minutes",
	},
}

// RootCauses returns the catalog entries with enough supporting issues.
func RootCauses(issues []types.Issue) []RootCause {
	var out []RootCause
	for _, p := range rootCauses {
		var supporting []types.Issue
		for _, i := range issues {
			if p.supports(&i, issueText(&i)) {
				supporting = append(supporting, i)
			}
		}
		if len(supporting) < p.minIssues {
			continue
		}
		out = append(out, RootCause{
			ID:                  p.id,
			Title:               p.title,
			SupportingIssues:    len(supporting),
			FixScript:           p.fixScript,
			ExpectedImprovement: p.expectedImprovement,
			EstimatedTime:       p.estimatedTime,
			Rules:               sortedRules(supporting),
		})
	}
	return out
}
