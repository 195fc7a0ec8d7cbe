// Package openai implements the caption provider contract on the official
// OpenAI API using chat completions with an inline image part.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/imaging"
	"github.com/pixelforge/alttext/internal/prompt"
)

// Chat payloads carry the image inline; a lossy format keeps them small.
const targetFormat = "jpeg"

type Config struct {
	APIKey         string
	BaseURL        string // "" uses the API default
	Model          string
	SystemMessage  string
	PromptTemplate string
	MaxTokens      int
	Temperature    float64
	Detail         string // "low", "high" or "auto"
	Timeout        time.Duration
	LogCompletions bool

	// RequestsPerMinute caps outbound API calls; zero uses the default.
	RequestsPerMinute int
}

// defaultRequestsPerMinute is a conservative client-side cap for accounts
// without a negotiated rate limit.
const defaultRequestsPerMinute = 20

type openai struct {
	cfg      Config
	oac      *oagc.Client
	preparer *imaging.Preparer
	log      *zap.SugaredLogger
	rl       *rateLimiter
}

var _ captioner.Captioner = (*openai)(nil)

func New(cfg Config, preparer *imaging.Preparer, httpClient *http.Client, log *zap.SugaredLogger) (captioner.Captioner, error) {
	if cfg.APIKey == "" {
		return nil, &captioner.ConfigError{Reason: "openai: api key not configured"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openai{
		cfg:      cfg,
		oac:      oagc.NewClient(opts...),
		preparer: preparer,
		log:      log,
		rl:       newRateLimiter(cfg.RequestsPerMinute, time.Minute),
	}, nil
}

func (o *openai) Name() string { return captioner.ProviderOpenAI }

func (o *openai) SupportsAsset(asset *cms.Asset) bool {
	return captioner.SupportsMimeType(asset.MimeType)
}

func (o *openai) GenerateCaption(ctx context.Context, asset *cms.Asset) (string, error) {
	if !o.SupportsAsset(asset) {
		o.log.Warnw("unsupported asset type", "mime_type", asset.MimeType, "asset", asset.ID())
		return "", nil
	}

	img := o.preparer.Prepare(ctx, asset, targetFormat)
	if img == nil {
		o.log.Warnw("could not prepare image", "asset", asset.ID())
		return "", nil
	}

	userPrompt, err := prompt.Render(o.cfg.PromptTemplate, asset)
	if err != nil {
		return "", err
	}

	// Rate limit use of the OpenAI API.
	if err := o.rl.Acquire(ctx); err != nil {
		return "", err
	}

	imagePart := oagc.ChatCompletionContentPartImageParam{
		Type: oagc.F(oagc.ChatCompletionContentPartImageTypeImageURL),
		ImageURL: oagc.F(oagc.ChatCompletionContentPartImageImageURLParam{
			URL:    oagc.F(img.DataURI),
			Detail: oagc.F(oagc.ChatCompletionContentPartImageImageURLDetail(o.detail())),
		}),
	}

	params := oagc.ChatCompletionNewParams{
		Model: oagc.F(o.cfg.Model),
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.SystemMessage(o.cfg.SystemMessage),
			oagc.UserMessageParts(
				oagc.TextPart(userPrompt),
				imagePart,
			),
		}),
		MaxTokens: oagc.Int(int64(o.cfg.MaxTokens)),
	}
	if o.cfg.Temperature > 0 {
		params.Temperature = oagc.Float(o.cfg.Temperature)
	}

	resp, err := o.oac.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &captioner.CaptionError{Provider: o.Name(), Err: err}
	}

	var caption string
	if len(resp.Choices) > 0 {
		caption = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if caption == "" {
		return "", &captioner.CaptionError{Provider: o.Name(), Body: "provider returned an empty caption"}
	}

	if o.cfg.LogCompletions {
		o.log.Infow("generated caption", "asset", asset.ID(), "caption", caption, "model", o.cfg.Model)
	}
	return caption, nil
}

func (o *openai) detail() string {
	if o.cfg.Detail == "" {
		return "auto"
	}
	return o.cfg.Detail
}
