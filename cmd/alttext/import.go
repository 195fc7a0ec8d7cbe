package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	// Register decoders for dimension sniffing during import.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pixelforge/alttext"
	"github.com/pixelforge/alttext/internal/store"
)

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".svg":  "image/svg+xml",
}

// runImport walks a directory tree and registers every image it finds in
// the asset store under one container handle.
func runImport(ctx context.Context, cfg *alttext.Config, log *zap.SugaredLogger, args []string) error {
	flags := flag.NewFlagSet("import", flag.ExitOnError)
	container := flags.String("container", "assets", "Container handle to register assets under")
	if err := flags.Parse(args); err != nil {
		return err
	}
	root := flags.Arg(0)
	if root == "" {
		return fmt.Errorf("import: missing directory argument")
	}

	imported, err := scanImages(root, *container)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d images on disk.\n", len(imported))

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	const batchSize = 100
	added, err := db.Import(ctx, imported, batchSize)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %d assets in container %q.\n", added, *container)
	return nil
}

func scanImages(root, container string) ([]store.ImportedAsset, error) {
	var imported []store.ImportedAsset

	err := filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		mimeType, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		width, height := imageDimensions(path)
		imported = append(imported, store.ImportedAsset{
			Container: container,
			Path:      filepath.ToSlash(rel),
			DiskPath:  path,
			MimeType:  mimeType,
			Width:     width,
			Height:    height,
		})
		return nil
	})
	return imported, err
}

// imageDimensions sniffs pixel dimensions from the file header. Assets
// whose dimensions cannot be read import with zero values; the pipeline
// treats those as unknown.
func imageDimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return config.Width, config.Height
}
