// Package alttext generates accessibility alt text for CMS image assets
// by delegating description to a pluggable vision-capable AI backend.
package alttext

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/chatapi"
	"github.com/pixelforge/alttext/internal/imaging"
	"github.com/pixelforge/alttext/internal/moondream"
	"github.com/pixelforge/alttext/internal/openai"
	"github.com/pixelforge/alttext/internal/prompt"
)

const defaultPrompt = prompt.DefaultTemplate

// InitOptions wires the pipeline to its host collaborators.
type InitOptions struct {
	Config *Config
	Store  cms.AssetStore
	Queue  cms.Queue
	Logger *zap.SugaredLogger

	HTTPClient *http.Client // if nil uses http.DefaultClient
}

// AltText bundles the generation pipeline for one configuration.
type AltText struct {
	*Generator
}

// Init resolves the configured provider, compiles the eligibility rules
// and returns a ready Generator. Configuration problems surface here as
// ConfigErrors, before any network call.
func Init(opts InitOptions) (*AltText, error) {
	cfg := opts.Config

	cap, err := NewCaptioner(cfg, opts.Store, opts.HTTPClient, opts.Logger)
	if err != nil {
		return nil, err
	}

	filter, err := NewEligibilityFilter(cfg.IgnorePatterns, cfg.IgnoreFieldHandle)
	if err != nil {
		return nil, err
	}

	return &AltText{
		Generator: NewGenerator(cfg, cap, filter, opts.Store, opts.Queue, opts.Logger),
	}, nil
}

// NewCaptioner builds the backend selected by the config's
// "provider/model" string. Unknown prefixes are rejected here, not at
// call time.
func NewCaptioner(cfg *Config, store cms.AssetStore, httpClient *http.Client, log *zap.SugaredLogger) (captioner.Captioner, error) {
	provider, model, err := captioner.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	var maxDim *int
	if cfg.MaxDimensionPixels != nil && *cfg.MaxDimensionPixels > 0 {
		maxDim = cfg.MaxDimensionPixels
	}
	preparer := imaging.NewPreparer(store, maxDim, log)
	ps := cfg.Provider(provider)

	switch provider {
	case captioner.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:            ps.APIKey,
			BaseURL:           ps.Endpoint,
			Model:             model,
			SystemMessage:     cfg.SystemMessage,
			PromptTemplate:    cfg.Prompt,
			MaxTokens:         cfg.MaxTokens,
			Temperature:       cfg.Temperature,
			Detail:            ps.Detail,
			Timeout:           cfg.ProviderTimeout(),
			LogCompletions:    cfg.LogCompletions,
			RequestsPerMinute: ps.RequestsPerMinute,
		}, preparer, httpClient, log)

	case captioner.ProviderMistral, captioner.ProviderGroq,
		captioner.ProviderDeepSeek, captioner.ProviderXAI,
		captioner.ProviderOllama:
		endpoint := ps.Endpoint
		if endpoint == "" {
			endpoint = chatapi.Endpoints[provider]
		}
		apiKey := ps.APIKey
		if provider == captioner.ProviderOllama {
			// Local inference endpoint, never authenticated.
			apiKey = ""
		}
		return chatapi.New(chatapi.Config{
			Provider:       provider,
			Endpoint:       endpoint,
			APIKey:         apiKey,
			Model:          model,
			SystemMessage:  cfg.SystemMessage,
			PromptTemplate: cfg.Prompt,
			MaxTokens:      cfg.MaxTokens,
			Temperature:    cfg.Temperature,
			Detail:         ps.Detail,
			Params:         cfg.Params,
			Timeout:        cfg.ProviderTimeout(),
			LogCompletions: cfg.LogCompletions,
		}, preparer, httpClient, log)

	case captioner.ProviderMoondream:
		return moondream.New(moondream.Config{
			Mode:           ps.Mode,
			Endpoint:       ps.Endpoint,
			APIKey:         ps.APIKey,
			Length:         ps.Length,
			Timeout:        cfg.ProviderTimeout(),
			LogCompletions: cfg.LogCompletions,
		}, preparer, httpClient, log)
	}

	// ParseModel validates against the registry, so this is unreachable;
	// keep the registry closed regardless.
	return nil, &captioner.ConfigError{Reason: "unsupported provider " + provider}
}
