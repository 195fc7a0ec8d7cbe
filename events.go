package alttext

import (
	"context"

	"github.com/pixelforge/alttext/cms"
)

// OnAssetEvent is the host lifecycle hook: the CMS calls it when an asset
// is uploaded or saved. If the event kind is on the configured allow-list
// and the alt-text field is empty, a quiet-save generation job is
// enqueued; the hook never generates inline.
func (g *Generator) OnAssetEvent(ctx context.Context, asset *cms.Asset, kind cms.EventKind) {
	if !g.eventEnabled(kind) {
		return
	}
	if asset.FieldString(g.cfg.AltTextField) != "" {
		return
	}
	if err := g.Dispatch(ctx, asset, "", true); err != nil {
		g.log.Errorw("could not queue generation for asset event",
			"asset", asset.ID(), "event", string(kind), "error", err)
	}
}

func (g *Generator) eventEnabled(kind cms.EventKind) bool {
	for _, e := range g.cfg.AutomaticGenerationEvents {
		if e == string(kind) {
			return true
		}
	}
	return false
}
