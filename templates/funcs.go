// templates/funcs.go
package templates

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Funcs returns helpers available to all templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		// {{ "a b" | urlquery }} → "a+b"
		"urlquery": url.QueryEscape,

		"lower":  strings.ToLower,
		"upper":  strings.ToUpper,
		"join":   strings.Join,
		"printf": func(f string, a ...any) string { return fmt.Sprintf(f, a...) },

		// {{ if checked $.Values "gender" "male" }}checked{{ end }}
		"checked": func(values map[string]string, key, want string) bool {
			return values[key] == want
		},
	}
}
