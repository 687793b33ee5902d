package service

import (
	"strings"

	"github.com/sifan077/clickhook/internal/app/model"
)

// RenderTemplate replaces {name} with the value of every field present in fields.
// Placeholders for absent fields stay as literal text. Substituted values are not rescanned.
func RenderTemplate(tmpl string, fields []model.RecordField) string {
	if len(fields) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		pairs = append(pairs, "{"+f.Name+"}", f.Value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
