// Package store is a sqlite-backed implementation of the cms.AssetStore
// contract. It gives the CLI and tests a self-contained host: asset
// metadata and fields live in the database, raw bytes stay on disk.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"

	"github.com/pixelforge/alttext/cms"
)

//go:embed schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// DB is a sqlite asset store. Safe for concurrent use.
type DB struct {
	mu sync.Mutex
	db *sql.DB

	// OnEvent, when set, is called after every non-quiet save. It stands
	// in for the host's lifecycle event bus.
	OnEvent func(ctx context.Context, a *cms.Asset, kind cms.EventKind)
}

var _ cms.AssetStore = (*DB)(nil)

func New(ctx context.Context, fname string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}
	return &DB{db: sqldb}, nil
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Find returns the asset with the given "container::path" id.
func (d *DB) Find(ctx context.Context, id string) (*cms.Asset, error) {
	container, path, err := cms.ParseID(id)
	if err != nil {
		return nil, err
	}

	row := d.db.QueryRowContext(ctx,
		`SELECT mime_type, width, height, fields FROM assets WHERE container=? AND path=?`,
		container, path)

	var (
		a         = cms.Asset{Container: container, Path: path}
		fieldsRaw string
	)
	if err := row.Scan(&a.MimeType, &a.Width, &a.Height, &fieldsRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, cms.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(fieldsRaw), &a.Fields); err != nil {
		return nil, fmt.Errorf("store: decoding fields for %s: %w", id, err)
	}
	return &a, nil
}

// Contents reads the asset's backing file off disk.
func (d *DB) Contents(ctx context.Context, a *cms.Asset) ([]byte, error) {
	var diskPath string
	err := d.db.QueryRowContext(ctx,
		`SELECT disk_path FROM assets WHERE container=? AND path=?`,
		a.Container, a.Path).Scan(&diskPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cms.ErrNotFound
		}
		return nil, err
	}
	if diskPath == "" {
		return nil, fmt.Errorf("store: asset %s has no backing file", a.ID())
	}
	return os.ReadFile(diskPath)
}

// Save persists the asset's fields. A normal save fires the OnEvent hook
// with asset_saving; a quiet save suppresses it.
func (d *DB) Save(ctx context.Context, a *cms.Asset, mode cms.SaveMode) error {
	fieldsRaw, err := json.Marshal(a.Fields)
	if err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE assets SET fields=?, updated_at=? WHERE container=? AND path=?`,
		string(fieldsRaw), time.Now().UTC(), a.Container, a.Path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cms.ErrNotFound
	}

	if mode == cms.SaveNormal && d.OnEvent != nil {
		d.OnEvent(ctx, a, cms.EventAssetSaving)
	}
	return nil
}

// List returns the assets in container, or all assets when container is
// empty, ordered by container then path.
func (d *DB) List(ctx context.Context, container string) ([]*cms.Asset, error) {
	query := `SELECT container, path, mime_type, width, height, fields FROM assets`
	args := []any{}
	if container != "" {
		query += ` WHERE container=?`
		args = append(args, container)
	}
	query += ` ORDER BY container, path`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*cms.Asset
	for rows.Next() {
		var (
			a         cms.Asset
			fieldsRaw string
		)
		if err := rows.Scan(&a.Container, &a.Path, &a.MimeType, &a.Width, &a.Height, &fieldsRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsRaw), &a.Fields); err != nil {
			return nil, fmt.Errorf("store: decoding fields for %s: %w", a.ID(), err)
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// ImportedAsset describes one asset to register during an import walk.
type ImportedAsset struct {
	Container string
	Path      string
	DiskPath  string
	MimeType  string
	Width     int
	Height    int
}

// Import upserts imported assets in batches inside one transaction,
// preserving the fields of rows that already exist.
func (d *DB) Import(ctx context.Context, assets []ImportedAsset, batchSize int) (int, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	txn, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	const stmt = `INSERT INTO assets (container, path, disk_path, mime_type, width, height, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (container, path) DO UPDATE SET
			disk_path=excluded.disk_path,
			mime_type=excluded.mime_type,
			width=excluded.width,
			height=excluded.height,
			updated_at=excluded.updated_at`

	now := time.Now().UTC()
	affected := 0
	for start := 0; start < len(assets); start += batchSize {
		end := min(start+batchSize, len(assets))
		for _, a := range assets[start:end] {
			res, err := txn.ExecContext(ctx, stmt,
				a.Container, a.Path, a.DiskPath, a.MimeType, a.Width, a.Height, now)
			if err != nil {
				return 0, err
			}
			n, _ := res.RowsAffected()
			affected += int(n)
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}
