// Package redisq backs the two shared-state surfaces of the pipeline with
// redis: the generation job queue (a list worked with blocking pops) and
// the short-TTL pending markers used by the async trigger/poll protocol.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/cms"
)

const markerPrefix = "alttext:pending:"

// Client wraps one redis connection shared by queue and marker store.
type Client struct {
	rdb  *goredis.Client
	name string // queue list name
	log  *zap.SugaredLogger
}

var (
	_ cms.Queue       = (*Client)(nil)
	_ cms.MarkerStore = (*Client)(nil)
)

func New(addr, queueName string, log *zap.SugaredLogger) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redisq: missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisq: ping: %w", err)
	}

	return &Client{rdb: rdb, name: queueName, log: log}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Enqueue pushes one job onto the queue list.
func (c *Client) Enqueue(ctx context.Context, job cms.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.LPush(ctx, c.name, raw).Err()
}

// Put stores a pending marker hash under the asset/field key with the
// given expiry.
func (c *Client) Put(ctx context.Context, key, hash string, ttl time.Duration) error {
	return c.rdb.Set(ctx, markerPrefix+key, hash, ttl).Err()
}

// Get returns the marker hash and whether a live marker exists.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, markerPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Consume removes a marker once completion has been detected.
func (c *Client) Consume(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, markerPrefix+key).Err()
}

// Worker pops jobs off the queue and runs them through a handler. The
// queue delivers at least once; handlers must tolerate re-runs.
type Worker struct {
	client  *Client
	handler func(ctx context.Context, job cms.Job) error
	log     *zap.SugaredLogger
}

func NewWorker(client *Client, handler func(ctx context.Context, job cms.Job) error, log *zap.SugaredLogger) *Worker {
	return &Worker{client: client, handler: handler, log: log}
}

// Run blocks, processing jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infow("queue worker started", "queue", w.client.name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := w.client.rdb.BRPop(ctx, 5*time.Second, w.client.name).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Errorw("queue pop failed", "error", err)
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}

		var job cms.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			w.log.Errorw("bad job payload, dropping", "payload", res[1], "error", err)
			continue
		}

		if err := w.handler(ctx, job); err != nil {
			// The job stays failed; retry policy belongs to the queue's
			// operator, not this worker.
			w.log.Errorw("generation job failed", "job", job.ID, "asset", job.AssetID, "error", err)
			continue
		}
		w.log.Infow("generation job done", "job", job.ID, "asset", job.AssetID)
	}
}
