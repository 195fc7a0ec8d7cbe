package alttext

import (
	"regexp"
	"strings"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
)

// SkipReason says why an asset was not eligible for caption generation.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipUnsupportedType SkipReason = "unsupported_type"
	SkipExistingValue   SkipReason = "existing_value"
	SkipExcludedPattern SkipReason = "excluded_pattern"
	SkipOptOut          SkipReason = "opt_out"
)

// EligibilityFilter decides whether an asset should be captioned. It is a
// pure predicate over the asset's current state; rules are evaluated in
// order and short-circuit on the first failure.
type EligibilityFilter struct {
	patterns    []exclusionPattern
	ignoreField string
}

type exclusionPattern struct {
	container string // "" applies to every container
	re        *regexp.Regexp
}

// NewEligibilityFilter compiles the configured exclusion patterns. Each is
// a glob, either global ("tmp/*") or container-scoped ("assets::icons/*"),
// matched case-insensitively against the asset path relative to its
// container root. Invalid patterns are reported as a ConfigError.
func NewEligibilityFilter(patterns []string, ignoreField string) (*EligibilityFilter, error) {
	f := &EligibilityFilter{ignoreField: ignoreField}
	for _, p := range patterns {
		container, glob, scoped := strings.Cut(p, "::")
		if !scoped {
			container, glob = "", p
		}
		re, err := compileGlob(glob)
		if err != nil {
			return nil, &captioner.ConfigError{Reason: "invalid ignore pattern " + p + ": " + err.Error()}
		}
		f.patterns = append(f.patterns, exclusionPattern{container: container, re: re})
	}
	return f, nil
}

// Eligible reports whether the asset qualifies, and if not, why.
func (f *EligibilityFilter) Eligible(asset *cms.Asset, field string, overwriteExisting bool) (bool, SkipReason) {
	if !captioner.SupportsMimeType(asset.MimeType) {
		return false, SkipUnsupportedType
	}
	if !overwriteExisting && asset.FieldString(field) != "" {
		return false, SkipExistingValue
	}
	for _, p := range f.patterns {
		if p.container != "" && p.container != asset.Container {
			continue
		}
		if p.re.MatchString(asset.Path) {
			return false, SkipExcludedPattern
		}
	}
	if f.ignoreField != "" && asset.FieldTruthy(f.ignoreField) {
		return false, SkipOptOut
	}
	return true, SkipNone
}

// compileGlob translates a shell-style glob into an anchored,
// case-insensitive regexp. `*` and `?` match across path separators and
// `[...]` classes pass through, matching fnmatch without FNM_PATHNAME.
func compileGlob(glob string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := strings.IndexByte(glob[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := glob[i : i+end+1]
			// fnmatch spells negation as [!...].
			class = strings.Replace(class, "[!", "[^", 1)
			sb.WriteString(class)
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
