package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/storage"
)

// AddOptions are the metadata flags of the add command.
type AddOptions struct {
	Favorite bool
	Tags     []string
	Albums   []string
}

// Add encrypts and stores files in the vault.
func Add(ctx context.Context, configPath string, files []string, opts AddOptions) {
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: add requires at least one file argument\n")
		fmt.Fprintf(os.Stderr, "Usage: photovault add <file> [file...]\n")
		os.Exit(1)
	}

	app := Open(ctx, configPath)
	defer app.Close()

	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %s\n", path, err)
			failed++
			continue
		}

		meta := storage.PhotoMetadata{
			OriginalFilename: filepath.Base(path),
			IsFavorite:       opts.Favorite,
			Tags:             opts.Tags,
			Albums:           opts.Albums,
		}
		if info, err := os.Stat(path); err == nil {
			mod := info.ModTime().UTC()
			meta.CaptureDate = &mod
		}

		obj, err := app.Store.Save(ctx, data, meta)
		if err != nil {
			if ctx.Err() != nil {
				app.Fail(err)
			}
			app.Log.Debug().Err(err).Str("file", path).Msg("save failed")
			fmt.Fprintf(os.Stderr, "  ✗ %s: %s\n", path, errs.Message(err))
			failed++
			continue
		}

		note := ""
		if obj.ThumbnailGenerationFailed {
			note = " (no thumbnail)"
		}
		fmt.Printf("  ✓ %s -> %s%s\n", path, obj.ID, note)
	}

	if failed > 0 {
		app.Close()
		os.Exit(1)
	}
}
