// Package cms defines the contract between the alt-text pipeline and the
// host content-management platform. The host owns asset storage, the job
// queue, and authorization; this package only names the surfaces the
// pipeline needs. Concrete adapters live in internal/store (sqlite) and
// internal/redisq (redis).
package cms

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by AssetStore.Find when no asset matches the id.
var ErrNotFound = errors.New("cms: asset not found")

// SaveMode controls whether writing an asset re-triggers the host's
// change-notification hooks.
type SaveMode int

const (
	// SaveNormal persists the asset and fires the host's lifecycle events.
	SaveNormal SaveMode = iota
	// SaveQuiet persists without firing events. Used for automatic
	// background generation to avoid re-entrant event loops.
	SaveQuiet
)

// EventKind identifies a host lifecycle event that may auto-trigger
// generation.
type EventKind string

const (
	EventAssetUploaded EventKind = "asset_uploaded"
	EventAssetSaving   EventKind = "asset_saving"
)

// Asset is a snapshot of a host asset. The id is "container::path". The
// pipeline reads metadata and bytes and writes a single field; everything
// else about the asset's lifecycle belongs to the host.
type Asset struct {
	Container string
	Path      string
	MimeType  string
	Width     int
	Height    int
	Fields    map[string]any
}

func (a *Asset) ID() string {
	return a.Container + "::" + a.Path
}

// ParseID splits a "container::path" identifier.
func ParseID(id string) (container, assetPath string, err error) {
	container, assetPath, ok := strings.Cut(id, "::")
	if !ok || container == "" || assetPath == "" {
		return "", "", fmt.Errorf("cms: malformed asset id %q", id)
	}
	return container, assetPath, nil
}

func (a *Asset) Filename() string {
	return path.Base(a.Path)
}

func (a *Asset) Basename() string {
	fn := a.Filename()
	return strings.TrimSuffix(fn, path.Ext(fn))
}

func (a *Asset) Extension() string {
	return strings.TrimPrefix(path.Ext(a.Path), ".")
}

// Orientation reports "portrait", "landscape" or "square" from the pixel
// dimensions. Unknown dimensions report as square.
func (a *Asset) Orientation() string {
	switch {
	case a.Width > a.Height:
		return "landscape"
	case a.Height > a.Width:
		return "portrait"
	default:
		return "square"
	}
}

// Field returns the named field value, or nil when unset.
func (a *Asset) Field(name string) any {
	if a.Fields == nil {
		return nil
	}
	return a.Fields[name]
}

// FieldString returns the named field rendered as a string, "" when unset.
func (a *Asset) FieldString(name string) string {
	v := a.Field(name)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a *Asset) SetField(name string, value any) {
	if a.Fields == nil {
		a.Fields = make(map[string]any)
	}
	a.Fields[name] = value
}

// FieldTruthy reports whether the named field is set to a truthy value.
// Mirrors the loose typing of CMS field data: false, 0, "", "false" and
// "0" are falsy.
func (a *Asset) FieldTruthy(name string) bool {
	switch v := a.Field(name).(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s != "" && s != "0" && s != "false"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

// AssetStore is the host's asset storage surface.
type AssetStore interface {
	// Find returns the asset with the given "container::path" id, or
	// ErrNotFound.
	Find(ctx context.Context, id string) (*Asset, error)

	// Contents returns the raw bytes backing the asset.
	Contents(ctx context.Context, a *Asset) ([]byte, error)

	// Save persists the asset's fields. SaveQuiet must suppress any
	// host-side change events.
	Save(ctx context.Context, a *Asset, mode SaveMode) error
}

// Lister is implemented by stores that can enumerate assets, used by the
// CLI to walk containers.
type Lister interface {
	// List returns the assets in the named container. An empty container
	// handle means all containers.
	List(ctx context.Context, container string) ([]*Asset, error)
}

// Job is one unit of deferred generation work.
type Job struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Field   string `json:"field"`
	Quiet   bool   `json:"quiet"`
}

// Queue hands jobs to the host's queue for later execution. Delivery is
// at-least-once; job handlers must tolerate re-runs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// MarkerStore holds the short-lived pending markers backing the async
// trigger/poll protocol. Entries expire on their own; Consume removes one
// eagerly once completion has been detected.
type MarkerStore interface {
	Put(ctx context.Context, key, hash string, ttl time.Duration) error
	// Get returns the stored hash and whether a live marker exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Consume(ctx context.Context, key string) error
}

// Authorizer answers whether an actor may modify an asset.
type Authorizer interface {
	CanUpdate(ctx context.Context, actor string, a *Asset) bool
}
