// Package prompt builds the text sent to the executor subprocess for every
// pipeline stage (§4.9). Templates are `{{placeholder}}`-substitution Go
// string constants, not an external templating engine or on-disk files, so
// the binary stays self-contained — mirroring the teacher's PromptTemplate
// constant pattern in internal/orchestrator/prompt.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a named prompt body with an enumerated, validated set of
// placeholders. Unknown placeholders found in the raw text at load time are
// a programmer error; Render additionally requires every declared
// placeholder to be supplied.
type Template struct {
	name         string
	body         string
	placeholders map[string]bool
}

// NewTemplate parses body, extracting its `{{placeholder}}` occurrences and
// validating them against the given allow-list. It panics on an unknown
// placeholder, since templates are only ever constructed from package-level
// constants or from operator-supplied config (override templates are rebuilt
// on every render) — never from untrusted runtime input.
func NewTemplate(name, body string, allowed ...string) *Template {
	allow := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allow[a] = true
	}

	found := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		key := m[1]
		if !allow[key] {
			panic(fmt.Sprintf("prompt: template %q references unknown placeholder {{%s}}", name, key))
		}
		found[key] = true
	}

	return &Template{name: name, body: body, placeholders: found}
}

// Placeholders returns the template's declared placeholder names, sorted.
func (t *Template) Placeholders() []string {
	out := make([]string, 0, len(t.placeholders))
	for k := range t.placeholders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render substitutes every placeholder found in the template body with the
// corresponding entry in values. A placeholder present in the body but
// absent from values is an error — templates are rendered once per stage
// invocation and a missing value almost always means a caller forgot a
// field, not that the field is legitimately empty (callers pass "" for
// that).
func (t *Template) Render(values map[string]string) (string, error) {
	for key := range t.placeholders {
		if _, ok := values[key]; !ok {
			return "", fmt.Errorf("prompt: template %q missing value for placeholder {{%s}}", t.name, key)
		}
	}

	out := t.body
	for key, val := range values {
		if !t.placeholders[key] {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out, nil
}
