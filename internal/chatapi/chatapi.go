// Package chatapi implements the caption provider contract against any
// OpenAI-compatible chat-completions endpoint. It serves the mistral,
// groq, deepseek and xai cloud backends plus ollama running on a local
// address (which never receives a credential header).
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/imaging"
	"github.com/pixelforge/alttext/internal/prompt"
)

// targetFormat is the normalized payload format for chat backends; a
// lossy, web-friendly encoding keeps the inline payload small.
const targetFormat = "jpeg"

type jsonmap = map[string]any

// Endpoints maps a provider registry name to its default chat-completions
// URL. The ollama entry points at the conventional local daemon.
var Endpoints = map[string]string{
	captioner.ProviderMistral:  "https://api.mistral.ai/v1/chat/completions",
	captioner.ProviderGroq:     "https://api.groq.com/openai/v1/chat/completions",
	captioner.ProviderDeepSeek: "https://api.deepseek.com/chat/completions",
	captioner.ProviderXAI:      "https://api.x.ai/v1/chat/completions",
	captioner.ProviderOllama:   "http://localhost:11434/v1/chat/completions",
}

type Config struct {
	Provider       string // registry name, used in errors and Name()
	Endpoint       string
	APIKey         string // empty for local backends: no header is sent
	Model          string
	SystemMessage  string
	PromptTemplate string
	MaxTokens      int
	Temperature    float64
	Detail         string        // image detail hint, "" omits it
	Params         jsonmap       // extra parameters merged over the payload
	Timeout        time.Duration // per-call budget
	LogCompletions bool
}

type chatAPI struct {
	cfg      Config
	preparer *imaging.Preparer
	client   *http.Client
	log      *zap.SugaredLogger
}

var _ captioner.Captioner = (*chatAPI)(nil)

func New(cfg Config, preparer *imaging.Preparer, httpClient *http.Client, log *zap.SugaredLogger) (captioner.Captioner, error) {
	if cfg.Endpoint == "" {
		return nil, &captioner.ConfigError{Reason: cfg.Provider + ": endpoint not configured"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &chatAPI{cfg: cfg, preparer: preparer, client: httpClient, log: log}, nil
}

func (c *chatAPI) Name() string { return c.cfg.Provider }

func (c *chatAPI) SupportsAsset(asset *cms.Asset) bool {
	return captioner.SupportsMimeType(asset.MimeType)
}

func (c *chatAPI) GenerateCaption(ctx context.Context, asset *cms.Asset) (string, error) {
	if !c.SupportsAsset(asset) {
		c.log.Warnw("unsupported asset type", "mime_type", asset.MimeType, "asset", asset.ID())
		return "", nil
	}

	img := c.preparer.Prepare(ctx, asset, targetFormat)
	if img == nil {
		c.log.Warnw("could not prepare image", "asset", asset.ID())
		return "", nil
	}

	userPrompt, err := prompt.Render(c.cfg.PromptTemplate, asset)
	if err != nil {
		return "", err
	}

	caption, err := c.sendRequest(ctx, userPrompt, img.DataURI)
	if err != nil {
		return "", err
	}
	if c.cfg.LogCompletions {
		c.log.Infow("generated caption", "asset", asset.ID(), "caption", caption)
	}
	return caption, nil
}

func (c *chatAPI) sendRequest(ctx context.Context, userPrompt, imageURI string) (string, error) {
	imagePart := jsonmap{"url": imageURI}
	if c.cfg.Detail != "" {
		imagePart["detail"] = c.cfg.Detail
	}
	payload := jsonmap{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages": []jsonmap{
			{"role": "system", "content": c.cfg.SystemMessage},
			{
				"role": "user",
				"content": []jsonmap{
					{"type": "text", "text": userPrompt},
					{"type": "image_url", "image_url": imagePart},
				},
			},
		},
	}
	if c.cfg.Temperature > 0 {
		payload["temperature"] = c.cfg.Temperature
	}
	// Caller-supplied parameters override everything above.
	maps.Copy(payload, c.cfg.Params)

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &captioner.CaptionError{Provider: c.cfg.Provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &captioner.CaptionError{
			Provider: c.cfg.Provider,
			Status:   resp.StatusCode,
			Body:     string(body),
		}
	}

	var respbody struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respbody); err != nil {
		return "", &captioner.CaptionError{Provider: c.cfg.Provider, Err: err}
	}

	var caption string
	if len(respbody.Choices) > 0 {
		caption = strings.TrimSpace(respbody.Choices[0].Message.Content)
	}
	if caption == "" {
		// Empty extracted text is a provider failure, not a skip.
		return "", &captioner.CaptionError{Provider: c.cfg.Provider, Body: "provider returned an empty caption"}
	}
	return caption, nil
}
