// Package gateway exposes the asynchronous trigger/poll protocol over
// HTTP. Trigger validates and enqueues; Check reads the asset's own field
// plus a short-lived pending marker to answer pending/ready without a
// dedicated job-status store.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/cms"
)

// ActorKey is the gin context key under which the host's auth middleware
// stores the authenticated actor.
const ActorKey = "alttext.actor"

const (
	StatusReady    = "ready"
	StatusPending  = "pending"
	StatusNotFound = "not_found"
)

// Gateway serves the trigger and check endpoints for UI-driven
// generation.
type Gateway struct {
	store   cms.AssetStore
	queue   cms.Queue
	markers cms.MarkerStore
	auth    cms.Authorizer
	field   string // default alt-text field
	ttl     time.Duration
	log     *zap.SugaredLogger
}

func New(store cms.AssetStore, queue cms.Queue, markers cms.MarkerStore, auth cms.Authorizer, defaultField string, markerTTL time.Duration, log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		store:   store,
		queue:   queue,
		markers: markers,
		auth:    auth,
		field:   defaultField,
		ttl:     markerTTL,
		log:     log,
	}
}

// Routes registers the gateway endpoints on r.
func (gw *Gateway) Routes(r gin.IRouter) {
	r.POST("/generate", gw.Trigger)
	r.GET("/check", gw.Check)
}

type triggerRequest struct {
	AssetPath string `json:"asset_path" binding:"required"`
	Field     string `json:"field"`
}

// Trigger validates the asset and the caller, records a pending marker
// with the field's current value hash, and enqueues generation. It never
// invokes the provider inline; the response returns as soon as the job is
// queued.
func (gw *Gateway) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "asset_path is required"})
		return
	}

	ctx := c.Request.Context()
	asset, err := gw.store.Find(ctx, req.AssetPath)
	if err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Asset not found by path: " + req.AssetPath})
			return
		}
		gw.log.Errorw("asset lookup failed", "asset", req.AssetPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not load asset."})
		return
	}

	if !gw.auth.CanUpdate(ctx, c.GetString(ActorKey), asset) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Unauthorized."})
		return
	}

	field := req.Field
	if field == "" {
		field = gw.field
	}

	// Capture what the field holds right now so Check can tell a newly
	// generated value apart from one that predates the request.
	if err := gw.markers.Put(ctx, markerKey(asset.ID(), field), hashValue(asset.FieldString(field)), gw.ttl); err != nil {
		gw.log.Errorw("could not store pending marker", "asset", asset.ID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not queue generation."})
		return
	}

	job := cms.Job{ID: uuid.NewString(), AssetID: asset.ID(), Field: field}
	if err := gw.queue.Enqueue(ctx, job); err != nil {
		gw.log.Errorw("could not enqueue generation job", "asset", asset.ID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not queue generation."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Alt text generation has been queued."})
}

// Check reports the generation status for an (asset, field) pair.
//
// An empty field is always pending. A non-empty field with no live marker
// is trusted as ready. With a marker, a changed hash means generation
// completed (the marker is consumed); an unchanged hash means the
// pre-existing value has not been overwritten yet.
func (gw *Gateway) Check(c *gin.Context) {
	assetID := c.Query("asset_path")
	field := c.Query("field")
	if field == "" {
		field = gw.field
	}

	ctx := c.Request.Context()
	asset, err := gw.store.Find(ctx, assetID)
	if err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": StatusNotFound, "message": "Asset not found by path: " + assetID})
			return
		}
		// A store failure is not "gone"; report pending so a polling UI
		// keeps trying instead of giving up.
		gw.log.Errorw("asset lookup failed", "asset", assetID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": StatusPending, "message": "Could not load asset."})
		return
	}

	value := asset.FieldString(field)
	if value == "" {
		c.JSON(http.StatusOK, gin.H{"status": StatusPending})
		return
	}

	key := markerKey(asset.ID(), field)
	recorded, ok, err := gw.markers.Get(ctx, key)
	if err != nil {
		gw.log.Errorw("marker lookup failed", "asset", asset.ID(), "error", err)
		ok = false
	}
	if !ok {
		// No marker: the value predates any request or the marker
		// expired. Either way the field content is authoritative.
		c.JSON(http.StatusOK, gin.H{"status": StatusReady, "caption": value})
		return
	}

	if recorded != hashValue(value) {
		if err := gw.markers.Consume(ctx, key); err != nil {
			gw.log.Warnw("could not clear pending marker", "asset", asset.ID(), "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": StatusReady, "caption": value})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": StatusPending})
}

func markerKey(assetID, field string) string {
	return assetID + "|" + field
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
