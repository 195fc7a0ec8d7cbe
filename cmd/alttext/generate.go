package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext"
	"github.com/pixelforge/alttext/cms"
	"github.com/pixelforge/alttext/internal/redisq"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string     { return fmt.Sprint(*s) }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// runGenerate processes matched assets sequentially, or dispatches queue
// jobs for all of them. Individual failures are reported in the summary
// counts and never affect the exit status.
func runGenerate(ctx context.Context, cfg *alttext.Config, log *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var assetIDs stringList
	fs.Var(&assetIDs, "asset", "Asset id (container::path) to process, repeatable")
	overwrite := fs.Bool("overwrite-existing", false, "Regenerate alt text even if the field already has a value")
	field := fs.String("field", "", "Field to save alt text to (defaults to the configured alt_text_field)")
	dispatch := fs.Bool("dispatch-jobs", false, "Queue jobs for async processing instead of running synchronously")
	if err := fs.Parse(args); err != nil {
		return err
	}
	container := fs.Arg(0)

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var queue cms.Queue = nullQueue{}
	if *dispatch {
		rq, err := redisq.New(cfg.Queue.Addr, cfg.Queue.Name, log)
		if err != nil {
			return err
		}
		defer rq.Close()
		queue = rq
	}

	at, err := alttext.Init(alttext.InitOptions{
		Config: cfg,
		Store:  db,
		Queue:  queue,
		Logger: log,
	})
	if err != nil {
		return err
	}
	at.Overwrite = *overwrite

	assets, err := collectAssets(ctx, db, container, assetIDs)
	if err != nil {
		return err
	}
	// Drop assets the backend cannot caption before doing any work.
	assets = filterSupported(at, assets)

	if len(assets) == 0 {
		fmt.Println("No image assets found matching the criteria.")
		return nil
	}
	fmt.Printf("Found %d image assets to process.\n", len(assets))

	if *dispatch {
		for _, asset := range assets {
			if err := at.Dispatch(ctx, asset, *field, false); err != nil {
				return err
			}
		}
		fmt.Printf("Dispatched %d jobs for async processing.\n", len(assets))
		return nil
	}

	bar := progressbar.Default(int64(len(assets)))
	var success, failed, skipped int
	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		caption, err := at.Handle(ctx, asset, *field, cms.SaveNormal)
		switch {
		case err != nil:
			log.Warnw("could not generate alt text", "asset", asset.ID(), "error", err)
			failed++
		case caption == "":
			skipped++
		default:
			success++
		}
		bar.Add(1)
	}
	fmt.Println()

	if failed > 0 {
		fmt.Printf("Completed alt text generation: %d successful, %d skipped, %d failed. Check logs for details.\n",
			success, skipped, failed)
	} else {
		fmt.Printf("Completed alt text generation: %d successful, %d skipped.\n", success, skipped)
	}
	return nil
}

func collectAssets(ctx context.Context, db interface {
	Find(ctx context.Context, id string) (*cms.Asset, error)
	List(ctx context.Context, container string) ([]*cms.Asset, error)
}, container string, ids stringList) ([]*cms.Asset, error) {
	if len(ids) > 0 {
		var assets []*cms.Asset
		for _, id := range ids {
			asset, err := db.Find(ctx, id)
			if err != nil {
				fmt.Printf("Could not find asset with identifier: %s\n", id)
				continue
			}
			assets = append(assets, asset)
		}
		return assets, nil
	}
	return db.List(ctx, container)
}

func filterSupported(at *alttext.AltText, assets []*cms.Asset) []*cms.Asset {
	supported := assets[:0]
	for _, a := range assets {
		if at.Captioner().SupportsAsset(a) {
			supported = append(supported, a)
		}
	}
	return supported
}
