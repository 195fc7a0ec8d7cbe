package alttext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
)

func newAsset(container, path, mime string) *cms.Asset {
	return &cms.Asset{
		Container: container,
		Path:      path,
		MimeType:  mime,
		Fields:    map[string]any{},
	}
}

func TestEligibleSupportedTypes(t *testing.T) {
	f, err := NewEligibilityFilter(nil, "auto_alt_text_ignore")
	require.NoError(t, err)

	tests := []struct {
		mime string
		want bool
		why  SkipReason
	}{
		{"image/jpeg", true, SkipNone},
		{"image/png", true, SkipNone},
		{"image/webp", true, SkipNone},
		{"image/svg+xml", false, SkipUnsupportedType},
		{"application/pdf", false, SkipUnsupportedType},
		{"video/mp4", false, SkipUnsupportedType},
		{"", false, SkipUnsupportedType},
	}
	for _, tt := range tests {
		ok, why := f.Eligible(newAsset("assets", "photo.bin", tt.mime), "alt", false)
		assert.Equal(t, tt.want, ok, "mime %q", tt.mime)
		assert.Equal(t, tt.why, why, "mime %q", tt.mime)
	}
}

func TestEligibleExistingValue(t *testing.T) {
	f, err := NewEligibilityFilter(nil, "auto_alt_text_ignore")
	require.NoError(t, err)

	asset := newAsset("assets", "photo.jpg", "image/jpeg")
	asset.SetField("alt", "A dog.")

	ok, why := f.Eligible(asset, "alt", false)
	assert.False(t, ok)
	assert.Equal(t, SkipExistingValue, why)

	// Overwrite mode ignores the existing value.
	ok, why = f.Eligible(asset, "alt", true)
	assert.True(t, ok)
	assert.Equal(t, SkipNone, why)

	// A different field is unaffected.
	ok, _ = f.Eligible(asset, "alt_de", false)
	assert.True(t, ok)
}

func TestEligibleExcludedPatterns(t *testing.T) {
	f, err := NewEligibilityFilter([]string{
		"tmp/*",
		"*.gif",
		"icons/favicon-??.png",
		"private::*",
	}, "")
	require.NoError(t, err)

	tests := []struct {
		container, path string
		want            bool
	}{
		{"assets", "tmp/scratch.jpg", false},
		{"assets", "TMP/Scratch.JPG", false}, // case-insensitive
		{"assets", "banner.gif", false},
		{"assets", "deep/nested/anim.gif", false},
		{"assets", "icons/favicon-32.png", false},
		{"assets", "icons/favicon-7.png", true}, // ?? needs two characters
		{"assets", "photos/summer.jpg", true},
		{"private", "anything.jpg", false}, // container-scoped wildcard
		{"assets", "anything.jpg", true},   // same path, other container
	}
	for _, tt := range tests {
		ok, why := f.Eligible(newAsset(tt.container, tt.path, "image/jpeg"), "alt", false)
		assert.Equal(t, tt.want, ok, "%s::%s", tt.container, tt.path)
		if !tt.want {
			assert.Equal(t, SkipExcludedPattern, why, "%s::%s", tt.container, tt.path)
		}
	}
}

func TestEligibleNegatedClass(t *testing.T) {
	f, err := NewEligibilityFilter([]string{"photo-[!0-9].jpg"}, "")
	require.NoError(t, err)

	ok, _ := f.Eligible(newAsset("assets", "photo-x.jpg", "image/jpeg"), "alt", false)
	assert.False(t, ok)
	ok, _ = f.Eligible(newAsset("assets", "photo-3.jpg", "image/jpeg"), "alt", false)
	assert.True(t, ok)
}

func TestEligibleOptOut(t *testing.T) {
	f, err := NewEligibilityFilter(nil, "auto_alt_text_ignore")
	require.NoError(t, err)

	for _, truthy := range []any{true, "true", "1", 1} {
		asset := newAsset("assets", "photo.jpg", "image/jpeg")
		asset.SetField("auto_alt_text_ignore", truthy)
		ok, why := f.Eligible(asset, "alt", false)
		assert.False(t, ok, "value %v", truthy)
		assert.Equal(t, SkipOptOut, why)
	}

	for _, falsy := range []any{false, "false", "0", "", nil} {
		asset := newAsset("assets", "photo.jpg", "image/jpeg")
		asset.SetField("auto_alt_text_ignore", falsy)
		ok, _ := f.Eligible(asset, "alt", false)
		assert.True(t, ok, "value %v", falsy)
	}
}

func TestNewEligibilityFilterInvalidPattern(t *testing.T) {
	_, err := NewEligibilityFilter([]string{"broken[z-a]"}, "")
	require.Error(t, err)
	var cfgErr *captioner.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
