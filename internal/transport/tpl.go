package transport

import (
	"regexp"

	"github.com/aspectron/kaspa-resolver/internal/logger"
)

var tplVarPattern = regexp.MustCompile(`\$\{\s*([a-zA-Z0-9_]+)\s*\}`)

// Tpl substitutes ${var} placeholders in a template string. Missing
// variables are logged and left unresolved in the output, matching the
// original templating helper's behavior.
type Tpl struct {
	vars map[string]string
}

func NewTpl(vars map[string]string) Tpl {
	m := make(map[string]string, len(vars))
	for k, v := range vars {
		m[k] = v
	}
	return Tpl{vars: m}
}

func (t Tpl) Render(template string) string {
	return tplVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := tplVarPattern.FindStringSubmatch(match)
		key := groups[1]
		value, ok := t.vars[key]
		if !ok {
			logger.With("tpl").Warn("missing template variable", "key", key)
			return match
		}
		return value
	})
}
