// Package prompt renders a configured prompt template against one asset's
// metadata to produce the instruction text sent to a caption provider.
//
// Templates use text/template syntax. Exposed variables: {{.id}},
// {{.filename}}, {{.basename}}, {{.extension}}, {{.width}}, {{.height}},
// {{.orientation}}, {{.container}}, {{.mime_type}}, {{.path}}. Arbitrary
// custom asset fields are reachable through {{field "handle"}}, which
// renders as the empty string when the field is unset. Conditional clauses
// use the usual {{if}}/{{else}}/{{end}} actions.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/pixelforge/alttext/cms"
)

// DefaultTemplate mirrors the plugin's stock prompt: mention the filename
// only when it carries information beyond the asset id.
const DefaultTemplate = `Describe this image for accessibility alt text.` +
	`{{if and .filename (ne .filename .id)}} The filename is "{{.filename}}".{{end}}`

// Render is pure: no side effects, unresolved variables render as "".
func Render(tmplText string, asset *cms.Asset) (string, error) {
	tmpl, err := template.New("prompt").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"field": func(name string) string { return asset.FieldString(name) },
		}).
		Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("prompt: parsing template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars(asset)); err != nil {
		return "", fmt.Errorf("prompt: rendering template: %w", err)
	}
	return sb.String(), nil
}

func vars(a *cms.Asset) map[string]string {
	return map[string]string{
		"id":          a.ID(),
		"filename":    a.Filename(),
		"basename":    a.Basename(),
		"extension":   a.Extension(),
		"width":       strconv.Itoa(a.Width),
		"height":      strconv.Itoa(a.Height),
		"orientation": a.Orientation(),
		"container":   a.Container,
		"mime_type":   a.MimeType,
		"path":        a.Path,
	}
}
