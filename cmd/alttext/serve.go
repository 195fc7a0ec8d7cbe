package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pixelforge/alttext"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/gateway"
	"github.com/pixelforge/alttext/internal/redisq"
)

// runServe hosts the trigger/check gateway and the queue worker that
// executes dispatched generation jobs.
func runServe(ctx context.Context, cfg *alttext.Config, log *zap.SugaredLogger) error {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rq, err := redisq.New(cfg.Queue.Addr, cfg.Queue.Name, log)
	if err != nil {
		return err
	}
	defer rq.Close()

	at, err := alttext.Init(alttext.InitOptions{
		Config: cfg,
		Store:  db,
		Queue:  rq,
		Logger: log,
	})
	if err != nil {
		return err
	}

	// Normal saves flow back through the lifecycle hook so the configured
	// auto-generation events fire like they would in the host CMS.
	db.OnEvent = func(ctx context.Context, a *cms.Asset, kind cms.EventKind) {
		at.OnAssetEvent(ctx, a, kind)
	}

	gw := gateway.New(db, rq, rq, tokenAuthorizer{}, cfg.AltTextField, cfg.MarkerLifetime(), log)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), actorMiddleware(os.Getenv("AUTO_ALT_TEXT_API_TOKEN")))
	gw.Routes(engine.Group("/auto-alt-text"))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	worker := redisq.NewWorker(rq, at.HandleJob, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("gateway listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// actorMiddleware authenticates control-panel calls with a shared token
// and records the actor for the authorizer. An empty configured token
// disables the check (local development).
func actorMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader("X-Alttext-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
			c.Set(gateway.ActorKey, "cp")
		}
		c.Next()
	}
}

// tokenAuthorizer grants edit access to any authenticated actor. A real
// host plugs in its own per-asset permission model here.
type tokenAuthorizer struct{}

func (tokenAuthorizer) CanUpdate(_ context.Context, actor string, _ *cms.Asset) bool {
	return actor != ""
}
