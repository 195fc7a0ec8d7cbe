package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/alttext/cms"
)

func testAsset() *cms.Asset {
	return &cms.Asset{
		Container: "assets",
		Path:      "photos/summer-beach.jpg",
		MimeType:  "image/jpeg",
		Width:     1600,
		Height:    900,
		Fields:    map[string]any{"title": "Summer Beach"},
	}
}

func TestRenderVariables(t *testing.T) {
	got, err := Render(
		`{{.filename}} ({{.extension}}, {{.width}}x{{.height}}, {{.orientation}}) in {{.container}}`,
		testAsset())
	require.NoError(t, err)
	assert.Equal(t, "summer-beach.jpg (jpg, 1600x900, landscape) in assets", got)
}

func TestRenderDefaultTemplate(t *testing.T) {
	got, err := Render(DefaultTemplate, testAsset())
	require.NoError(t, err)
	assert.Equal(t,
		`Describe this image for accessibility alt text. The filename is "summer-beach.jpg".`,
		got)
}

func TestRenderConditional(t *testing.T) {
	tmpl := `Describe the image.{{if .width}} It is {{.orientation}}.{{end}}`

	got, err := Render(tmpl, testAsset())
	require.NoError(t, err)
	assert.Equal(t, "Describe the image. It is landscape.", got)
}

func TestRenderUnresolvedVariableIsEmpty(t *testing.T) {
	got, err := Render(`before {{.no_such_variable}} after`, testAsset())
	require.NoError(t, err)
	assert.Equal(t, "before  after", got)
}

func TestRenderCustomField(t *testing.T) {
	got, err := Render(`Titled {{field "title"}}; alt so far: "{{field "alt"}}"`, testAsset())
	require.NoError(t, err)
	assert.Equal(t, `Titled Summer Beach; alt so far: ""`, got)
}

func TestRenderParseError(t *testing.T) {
	_, err := Render(`{{if}}`, testAsset())
	assert.Error(t, err)
}
