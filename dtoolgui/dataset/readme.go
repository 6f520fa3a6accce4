package dataset

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// Reference is a readme scalar holding a dataset UUID
type Reference struct {
	Path   string // e.g. derived_from[0].uuid
	UUID   string
	Line   int
	Column int
}

// ReadmeReferences returns every string scalar of the readme that is a valid UUID,
// in document order.
func ReadmeReferences(text string) ([]Reference, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: readme: %v", common.ErrValidation, err)
	}

	var refs []Reference
	var walk func(n *yaml.Node, path string)
	walk = func(n *yaml.Node, path string) {
		switch n.Kind {
		case yaml.DocumentNode:
			for _, c := range n.Content {
				walk(c, path)
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				key := n.Content[i].Value
				child := key
				if path != "" {
					child = path + "." + key
				}
				walk(n.Content[i+1], child)
			}
		case yaml.SequenceNode:
			for i, c := range n.Content {
				walk(c, path+"["+strconv.Itoa(i)+"]")
			}
		case yaml.AliasNode:
			// aliases repeat an anchored value reported at its anchor
		case yaml.ScalarNode:
			if n.ShortTag() == "!!str" && common.IsUUID(n.Value) {
				refs = append(refs, Reference{Path: path, UUID: n.Value, Line: n.Line, Column: n.Column})
			}
		}
	}
	walk(&doc, "")
	return refs, nil
}

// Lint severities
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// LintProblem is one finding of LintReadme
type LintProblem struct {
	Line    int
	Column  int
	Level   string
	Rule    string
	Message string
}

func (p LintProblem) String() string {
	return fmt.Sprintf("%d:%d %s %s (%s)", p.Line, p.Column, p.Level, p.Message, p.Rule)
}

// MaxReadmeLineLength is the line-length limit of the default lint rules
const MaxReadmeLineLength = 80

var (
	yamlErrLineRe = regexp.MustCompile(`line (\d+):`)
	truthyValues  = map[string]struct{}{
		"yes": {}, "Yes": {}, "YES": {}, "no": {}, "No": {}, "NO": {},
		"on": {}, "On": {}, "ON": {}, "off": {}, "Off": {}, "OFF": {},
	}
)

// LintReadme checks a readme against the default YAML lint rules: syntax,
// key-duplicates, trailing-spaces, line-length, new-line-at-end-of-file and truthy.
// Problems are ordered by position.
func LintReadme(text string) []LintProblem {
	if text == "" {
		return nil
	}

	var problems []LintProblem
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		n := i + 1
		line = strings.TrimSuffix(line, "\r")
		if trimmed := strings.TrimRight(line, " \t"); len(trimmed) != len(line) {
			problems = append(problems, LintProblem{
				Line: n, Column: len(trimmed) + 1, Level: LevelError,
				Rule: "trailing-spaces", Message: "trailing spaces",
			})
		}
		if len([]rune(line)) > MaxReadmeLineLength && !isUnbreakable(line) {
			problems = append(problems, LintProblem{
				Line: n, Column: MaxReadmeLineLength + 1, Level: LevelError,
				Rule:    "line-length",
				Message: fmt.Sprintf("line too long (%d > %d characters)", len([]rune(line)), MaxReadmeLineLength),
			})
		}
	}
	if !strings.HasSuffix(text, "\n") {
		problems = append(problems, LintProblem{
			Line: len(lines), Column: len([]rune(lines[len(lines)-1])) + 1, Level: LevelError,
			Rule: "new-line-at-end-of-file", Message: "no new line character at the end of file",
		})
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		line := 1
		if m := yamlErrLineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		problems = append(problems, LintProblem{
			Line: line, Column: 1, Level: LevelError,
			Rule: "syntax", Message: strings.TrimPrefix(err.Error(), "yaml: "),
		})
	} else {
		problems = append(problems, lintNodes(&doc)...)
	}

	sort.SliceStable(problems, func(i, j int) bool {
		if problems[i].Line != problems[j].Line {
			return problems[i].Line < problems[j].Line
		}
		return problems[i].Column < problems[j].Column
	})
	return problems
}

func lintNodes(n *yaml.Node) []LintProblem {
	var out []LintProblem
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			out = append(out, lintNodes(c)...)
		}
	case yaml.MappingNode:
		seen := make(map[string]int)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if first, dup := seen[k.Value]; dup {
				out = append(out, LintProblem{
					Line: k.Line, Column: k.Column, Level: LevelError, Rule: "key-duplicates",
					Message: fmt.Sprintf("duplication of key %q in mapping (first at line %d)", k.Value, first),
				})
			} else {
				seen[k.Value] = k.Line
			}
			out = append(out, lintNodes(n.Content[i+1])...)
		}
	case yaml.ScalarNode:
		if n.Style == 0 {
			if _, ok := truthyValues[n.Value]; ok {
				out = append(out, LintProblem{
					Line: n.Line, Column: n.Column, Level: LevelWarning, Rule: "truthy",
					Message: "truthy value should be one of [false, true]",
				})
			}
		}
	}
	return out
}

// isUnbreakable reports lines made of a single long word such as a URL,
// which the default line-length rule allows.
func isUnbreakable(line string) bool {
	fields := strings.Fields(strings.TrimLeft(line, " -"))
	if len(fields) == 1 {
		return true
	}
	// "key: longvalue"
	return len(fields) == 2 && strings.HasSuffix(fields[0], ":")
}
