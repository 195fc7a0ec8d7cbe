package alttext

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
)

// Hooks are optional callbacks fired around each provider call.
type Hooks struct {
	BeforeGeneration func(asset *cms.Asset)
	AfterGeneration  func(asset *cms.Asset, caption string)
}

// Generator runs the caption pipeline for one asset at a time: eligibility
// gate, provider call, sanitization, field write.
type Generator struct {
	cfg    *Config
	cap    captioner.Captioner
	filter *EligibilityFilter
	store  cms.AssetStore
	queue  cms.Queue
	log    *zap.SugaredLogger

	// Overwrite regenerates captions even when the field already holds a
	// value. Off by default; the CLI flips it per run.
	Overwrite bool

	Hooks Hooks
}

func NewGenerator(cfg *Config, cap captioner.Captioner, filter *EligibilityFilter, store cms.AssetStore, queue cms.Queue, log *zap.SugaredLogger) *Generator {
	return &Generator{
		cfg:    cfg,
		cap:    cap,
		filter: filter,
		store:  store,
		queue:  queue,
		log:    log,
	}
}

// Captioner exposes the configured provider, e.g. for pre-filtering asset
// lists by supported type.
func (g *Generator) Captioner() captioner.Captioner { return g.cap }

// Field resolves an explicit field name against the configured default.
func (g *Generator) Field(field string) string {
	if field != "" {
		return field
	}
	return g.cfg.AltTextField
}

// Handle generates, sanitizes and saves alt text for one asset. It
// returns ("", nil) when the asset was skipped (ineligible or
// unpreparable) and propagates provider errors to the caller, which
// decides whether to fall back to queuing.
func (g *Generator) Handle(ctx context.Context, asset *cms.Asset, field string, mode cms.SaveMode) (string, error) {
	field = g.Field(field)

	if ok, reason := g.filter.Eligible(asset, field, g.Overwrite); !ok {
		g.log.Infow("asset skipped", "asset", asset.ID(), "reason", string(reason))
		return "", nil
	}

	if g.Hooks.BeforeGeneration != nil {
		g.Hooks.BeforeGeneration(asset)
	}

	caption, err := g.cap.GenerateCaption(ctx, asset)
	if err != nil {
		return "", err
	}
	if caption == "" {
		// The provider declined the asset (unreadable image); not an error.
		return "", nil
	}

	caption = Sanitize(caption)
	asset.SetField(field, caption)
	if err := g.store.Save(ctx, asset, mode); err != nil {
		return "", fmt.Errorf("saving asset %s: %w", asset.ID(), err)
	}

	if g.Hooks.AfterGeneration != nil {
		g.Hooks.AfterGeneration(asset, caption)
	}
	return caption, nil
}

// HandleBatch processes assets sequentially in the order given and
// returns a complete map of asset id to caption. Failures and skips are
// isolated per asset and recorded as ""; one failure never aborts the
// batch.
func (g *Generator) HandleBatch(ctx context.Context, assets []*cms.Asset, field string) map[string]string {
	results := make(map[string]string, len(assets))
	for _, asset := range assets {
		caption, err := g.Handle(ctx, asset, field, cms.SaveNormal)
		if err != nil {
			g.log.Errorw("batch caption generation failed", "asset", asset.ID(), "error", err)
			results[asset.ID()] = ""
			continue
		}
		results[asset.ID()] = caption
	}
	return results
}

// HandleOrQueue tries synchronous generation and, on a recoverable
// provider failure, falls back to enqueueing the same work. The queued
// return reports which path completed.
func (g *Generator) HandleOrQueue(ctx context.Context, asset *cms.Asset, field string) (caption string, queued bool, err error) {
	caption, err = g.Handle(ctx, asset, field, cms.SaveNormal)
	if err == nil {
		return caption, false, nil
	}

	var ce *captioner.CaptionError
	if !errors.As(err, &ce) {
		return "", false, err
	}
	g.log.Warnw("synchronous generation failed, queueing", "asset", asset.ID(), "error", err)
	if qerr := g.Dispatch(ctx, asset, field, false); qerr != nil {
		return "", false, qerr
	}
	return "", true, nil
}

// Dispatch enqueues one generation job for later execution.
func (g *Generator) Dispatch(ctx context.Context, asset *cms.Asset, field string, quiet bool) error {
	job := cms.Job{
		ID:      uuid.NewString(),
		AssetID: asset.ID(),
		Field:   g.Field(field),
		Quiet:   quiet,
	}
	if err := g.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueueing generation job for %s: %w", asset.ID(), err)
	}
	return nil
}

// HandleJob executes one queued unit of work. Safe under at-least-once
// delivery: re-running on an asset whose field is already populated is a
// no-op through the eligibility filter.
func (g *Generator) HandleJob(ctx context.Context, job cms.Job) error {
	asset, err := g.store.Find(ctx, job.AssetID)
	if err != nil {
		return fmt.Errorf("loading asset for job %s: %w", job.ID, err)
	}
	mode := cms.SaveNormal
	if job.Quiet {
		mode = cms.SaveQuiet
	}
	_, err = g.Handle(ctx, asset, job.Field, mode)
	return err
}
