package sentence

import (
	"fmt"
	"regexp"
	"strings"
)

// Directives are embedded by the model inline as <<command:target>> or
// <<command:target:param>> and are never spoken aloud.
var directivePattern = regexp.MustCompile(`<<([a-z_]+):([^:<>]+?)(?::([^<>]+?))?>>`)

// Directive is one device or media command extracted from a sentence.
type Directive struct {
	Command string
	Target  string
	Param   string
}

func (d Directive) String() string {
	if d.Param != "" {
		return fmt.Sprintf("%s:%s:%s", d.Command, d.Target, d.Param)
	}

	return fmt.Sprintf("%s:%s", d.Command, d.Target)
}

// Extract strips every embedded directive from the sentence and returns the
// speakable remainder alongside the directives in their original order. A
// sentence that was nothing but directives comes back empty.
func Extract(text string) (string, []Directive) {
	matches := directivePattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return text, nil
	}

	directives := make([]Directive, 0, len(matches))
	for _, m := range matches {
		directives = append(directives, Directive{
			Command: m[1],
			Target:  strings.TrimSpace(m[2]),
			Param:   strings.TrimSpace(m[3]),
		})
	}

	clean := directivePattern.ReplaceAllString(text, "")
	clean = strings.Join(strings.Fields(clean), " ")

	return clean, directives
}
