package loader

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// sanitizeText strips markup and returns plain text. Entities produced by the
// policy are decoded again so "R&D" stays "R&D".
func sanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := textSanitizer().Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// SanitizeFields returns a copy of fields with markup removed from labels and
// options. Ids, formulas and defaults are left alone.
func SanitizeFields(fields schema.FieldSet) schema.FieldSet {
	out := fields.Clone()
	for i := range out {
		out[i].Label = sanitizeText(out[i].Label)
		for j, opt := range out[i].Options {
			out[i].Options[j] = sanitizeText(opt)
		}
	}
	return out
}
