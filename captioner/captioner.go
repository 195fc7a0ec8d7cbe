// Package captioner defines the provider contract for vision-capable
// caption backends and the model-addressing scheme used to select one.
package captioner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pixelforge/alttext/cms"
)

// Captioner generates an alt-text caption for an asset using a specific
// vision backend.
type Captioner interface {
	// Name returns the backing provider's registry name, e.g. "openai" or
	// "moondream".
	Name() string

	// GenerateCaption returns an English description of the asset's image.
	// A ("", nil) return means the asset was skipped (unsupported type or
	// unreadable image); a non-nil error means the provider call failed.
	GenerateCaption(ctx context.Context, asset *cms.Asset) (string, error)

	// SupportsAsset reports whether this backend can caption the asset's
	// mime type. Factories use it to filter before building a request.
	SupportsAsset(asset *cms.Asset) bool
}

// Registered provider prefixes for the "provider/model" config string.
const (
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"
	ProviderGroq      = "groq"
	ProviderDeepSeek  = "deepseek"
	ProviderXAI       = "xai"
	ProviderOllama    = "ollama"
	ProviderMoondream = "moondream"
)

// Providers lists the recognized provider prefixes.
var Providers = []string{
	ProviderOpenAI,
	ProviderMistral,
	ProviderGroq,
	ProviderDeepSeek,
	ProviderXAI,
	ProviderOllama,
	ProviderMoondream,
}

// ParseModel splits a "provider/model" string on the first slash and
// validates the provider against the registry. Errors are ConfigErrors and
// are raised before any network call is made.
func ParseModel(s string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return "", "", &ConfigError{
			Reason: fmt.Sprintf("invalid model format %q, expected \"provider/model\" (e.g. \"openai/gpt-4.1\")", s),
		}
	}
	for _, p := range Providers {
		if provider == p {
			return provider, model, nil
		}
	}
	return "", "", &ConfigError{
		Reason: fmt.Sprintf("unsupported provider %q, supported: %s", provider, strings.Join(Providers, ", ")),
	}
}

// SupportsMimeType reports whether a mime type is captionable. Raster
// image types are; SVG is not (vector data defeats the pixel-based image
// preparation), nor is anything outside image/*.
func SupportsMimeType(mimeType string) bool {
	if mimeType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}
