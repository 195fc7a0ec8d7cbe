// Package moondream implements the caption provider contract against the
// Moondream caption API: a single endpoint taking an inline image and
// returning a flat {caption} object. It runs in two modes, a cloud
// endpoint authenticated with an X-Moondream-Auth header and a local
// inference endpoint that never receives a credential.
package moondream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/imaging"
)

const (
	CloudEndpoint = "https://api.moondream.ai/v1/caption"
	LocalEndpoint = "http://localhost:2020/v1/caption"

	ModeCloud = "cloud"
	ModeLocal = "local"
)

type Config struct {
	Mode           string // ModeCloud or ModeLocal
	Endpoint       string
	APIKey         string // cloud mode only
	Length         string // "short" or "normal", "" lets the API default
	Timeout        time.Duration
	LogCompletions bool
}

type moondream struct {
	cfg      Config
	preparer *imaging.Preparer
	client   *http.Client
	log      *zap.SugaredLogger
}

var _ captioner.Captioner = (*moondream)(nil)

func New(cfg Config, preparer *imaging.Preparer, httpClient *http.Client, log *zap.SugaredLogger) (captioner.Captioner, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeCloud
	}
	if cfg.Mode != ModeCloud && cfg.Mode != ModeLocal {
		return nil, &captioner.ConfigError{Reason: "moondream: unknown mode " + cfg.Mode}
	}
	if cfg.Endpoint == "" {
		if cfg.Mode == ModeCloud {
			cfg.Endpoint = CloudEndpoint
		} else {
			cfg.Endpoint = LocalEndpoint
		}
	}
	if cfg.Mode == ModeCloud && cfg.APIKey == "" {
		return nil, &captioner.ConfigError{Reason: "moondream: cloud mode requires an api key"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &moondream{cfg: cfg, preparer: preparer, client: httpClient, log: log}, nil
}

func (m *moondream) Name() string { return captioner.ProviderMoondream }

func (m *moondream) SupportsAsset(asset *cms.Asset) bool {
	return captioner.SupportsMimeType(asset.MimeType)
}

func (m *moondream) GenerateCaption(ctx context.Context, asset *cms.Asset) (string, error) {
	if !m.SupportsAsset(asset) {
		m.log.Warnw("unsupported asset type", "mime_type", asset.MimeType, "asset", asset.ID())
		return "", nil
	}

	// The caption endpoint takes the image as-is, so keep the source
	// format and only downsize when needed.
	img := m.preparer.Prepare(ctx, asset, "")
	if img == nil {
		m.log.Warnw("could not prepare image", "asset", asset.ID())
		return "", nil
	}

	caption, err := m.sendRequest(ctx, img.DataURI)
	if err != nil {
		return "", err
	}
	if m.cfg.LogCompletions {
		m.log.Infow("generated caption", "asset", asset.ID(), "caption", caption)
	}
	return caption, nil
}

func (m *moondream) sendRequest(ctx context.Context, imageURI string) (string, error) {
	payload := map[string]any{"image_url": imageURI}
	if m.cfg.Length != "" {
		payload["length"] = m.cfg.Length
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.Mode == ModeCloud {
		req.Header.Set("X-Moondream-Auth", m.cfg.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &captioner.CaptionError{Provider: m.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &captioner.CaptionError{
			Provider: m.Name(),
			Status:   resp.StatusCode,
			Body:     string(b),
		}
	}

	var respbody struct {
		Caption string `json:"caption"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respbody); err != nil {
		return "", &captioner.CaptionError{Provider: m.Name(), Err: err}
	}
	if respbody.Caption == "" {
		return "", &captioner.CaptionError{Provider: m.Name(), Body: "provider returned an empty caption"}
	}
	return respbody.Caption, nil
}
