package health

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Complexity classes, from best to worst.
const (
	ClassExcellent  = "excellent"
	ClassGood       = "good"
	ClassAcceptable = "acceptable"
	ClassWarning    = "warning"
	ClassCritical   = "critical"
)

// ComplexityExtensions are the source files the analyzer understands.
var ComplexityExtensions = []string{".go", ".py"}

// FunctionComplexity represents a function's complexity metrics.
type FunctionComplexity struct {
	Complexity int    `json:"complexity"`
	Function   string `json:"function"`
	FilePath   string `json:"file"`
	Line       int    `json:"line"`
	Class      string `json:"class"`
	// Annotated is true when parameters and result carry types.
	Annotated bool `json:"annotated"`
}

// FileComplexity aggregates the functions of one file.
type FileComplexity struct {
	FilePath  string  `json:"file"`
	Functions int     `json:"functions"`
	Average   float64 `json:"average"`
	Max       int     `json:"max"`
}

// ComplexityReport is the result of analyzing a tree.
type ComplexityReport struct {
	Functions    []FunctionComplexity `json:"functions"`
	Files        []FileComplexity     `json:"files"`
	Average      float64              `json:"average"`
	Max          int                  `json:"max"`
	ByClass      map[string]int       `json:"by_class"`
	Annotated    int                  `json:"annotated"`
	ParseErrors  []string             `json:"parse_errors,omitempty"`
	Distribution Distribution         `json:"-"`
}

// Classify maps a complexity value to its class.
func (t ComplexityThresholds) Classify(c int) string {
	switch {
	case c <= t.Excellent:
		return ClassExcellent
	case c <= t.Good:
		return ClassGood
	case c <= t.Acceptable:
		return ClassAcceptable
	case c <= t.Warning:
		return ClassWarning
	default:
		return ClassCritical
	}
}

// AnalyzeComplexity computes cyclomatic complexity for every Go and Python
// function under root. Files that fail to parse are listed and skipped.
func AnalyzeComplexity(root string, excludes []string, thresholds ComplexityThresholds) (*ComplexityReport, error) {
	report := &ComplexityReport{ByClass: make(map[string]int)}

	err := WalkFiles(root, ".", ComplexityExtensions, excludes, func(rel string) error {
		var fns []FunctionComplexity
		var err error
		switch filepath.Ext(rel) {
		case ".go":
			fns, err = goComplexity(filepath.Join(root, rel), rel)
		case ".py":
			fns, err = pythonComplexity(filepath.Join(root, rel), rel)
		}
		if err != nil {
			report.ParseErrors = append(report.ParseErrors, fmt.Sprintf("%s: %v", rel, err))
			return nil
		}
		if len(fns) == 0 {
			return nil
		}

		file := FileComplexity{FilePath: rel, Functions: len(fns)}
		sum := 0
		for i := range fns {
			fns[i].Class = thresholds.Classify(fns[i].Complexity)
			sum += fns[i].Complexity
			if fns[i].Complexity > file.Max {
				file.Max = fns[i].Complexity
			}
		}
		file.Average = float64(sum) / float64(len(fns))
		report.Files = append(report.Files, file)
		report.Functions = append(report.Functions, fns...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source files: %w", err)
	}

	values := make([]float64, 0, len(report.Functions))
	for _, fn := range report.Functions {
		values = append(values, float64(fn.Complexity))
		report.ByClass[fn.Class]++
		if fn.Complexity > report.Max {
			report.Max = fn.Complexity
		}
		if fn.Annotated {
			report.Annotated++
		}
	}
	report.Distribution = Summarize(values)
	report.Average = report.Distribution.Mean

	sort.SliceStable(report.Functions, func(i, j int) bool {
		return report.Functions[i].Complexity > report.Functions[j].Complexity
	})
	return report, nil
}

// goComplexity counts decision points per function declaration. Function
// literals add one to the enclosing function.
func goComplexity(path, rel string) ([]FunctionComplexity, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	var out []FunctionComplexity
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		name := fn.Name.Name
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			name = receiverName(fn.Recv.List[0].Type) + "." + name
		}
		out = append(out, FunctionComplexity{
			Complexity: 1 + goDecisions(fn.Body),
			Function:   name,
			FilePath:   rel,
			Line:       fset.Position(fn.Pos()).Line,
			Annotated:  true,
		})
	}
	return out, nil
}

func goDecisions(body ast.Node) int {
	n := 0
	ast.Inspect(body, func(node ast.Node) bool {
		switch x := node.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.FuncLit:
			n++
		case *ast.CaseClause:
			if x.List != nil {
				n++
			}
		case *ast.CommClause:
			if x.Comm != nil {
				n++
			}
		case *ast.BinaryExpr:
			if x.Op == token.LAND || x.Op == token.LOR {
				n++
			}
		}
		return true
	})
	return n
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return "?"
}

var (
	pyDefPattern     = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	pyStringPattern  = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	pyBranchPattern  = regexp.MustCompile(`\b(if|elif|for|while|except|with|assert|and|or|lambda)\b`)
	pyReturnAnnotate = regexp.MustCompile(`\)\s*->`)
)

type pyFunc struct {
	fc     FunctionComplexity
	indent int
}

// pythonComplexity scans def blocks by indentation. Each line belongs to
// the innermost open def; branching keywords on it add to that def.
func pythonComplexity(path, rel string) ([]FunctionComplexity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var done []FunctionComplexity
	var stack []*pyFunc
	inDocstring := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)

		if strings.Count(trimmed, `"""`)%2 == 1 || strings.Count(trimmed, `'''`)%2 == 1 {
			inDocstring = !inDocstring
			continue
		}
		if inDocstring || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			done = append(done, stack[len(stack)-1].fc)
			stack = stack[:len(stack)-1]
		}

		code := pyStringPattern.ReplaceAllString(trimmed, `""`)
		if i := strings.Index(code, "#"); i >= 0 {
			code = code[:i]
		}

		if m := pyDefPattern.FindStringSubmatch(raw); m != nil {
			stack = append(stack, &pyFunc{
				indent: indent,
				fc: FunctionComplexity{
					Complexity: 1,
					Function:   m[2],
					FilePath:   rel,
					Line:       lineNum,
					Annotated:  pyReturnAnnotate.MatchString(code),
				},
			})
			continue
		}
		if len(stack) > 0 {
			stack[len(stack)-1].fc.Complexity += len(pyBranchPattern.FindAllString(code, -1))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for i := len(stack) - 1; i >= 0; i-- {
		done = append(done, stack[i].fc)
	}
	sort.SliceStable(done, func(i, j int) bool { return done[i].Line < done[j].Line })
	return done, nil
}
