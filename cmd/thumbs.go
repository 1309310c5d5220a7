package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/errs"
)

// Thumbs lists photos without a usable thumbnail and optionally
// regenerates them.
func Thumbs(ctx context.Context, configPath string, regenerate bool) {
	app := Open(ctx, configPath)
	defer app.Close()

	pending := app.Store.PhotosNeedingThumbnails()
	if len(pending) == 0 {
		fmt.Println("All photos have thumbnails")
		return
	}

	if !regenerate {
		fmt.Printf("Photos needing thumbnails (%d):\n", len(pending))
		for _, obj := range pending {
			fmt.Println(formatObject(obj))
		}
		return
	}

	fixed := 0
	for _, obj := range pending {
		if err := app.Store.RegenerateThumbnail(ctx, obj.ID); err != nil {
			if ctx.Err() != nil {
				app.Fail(err)
			}
			app.Log.Debug().Err(err).Str("id", obj.ID).Msg("thumbnail regeneration failed")
			fmt.Fprintf(os.Stderr, "  ✗ %s: %s\n", obj.ID, errs.Message(err))
			continue
		}
		fixed++
		fmt.Printf("  ✓ %s\n", obj.ID)
	}
	fmt.Printf("Regenerated %d of %d thumbnails\n", fixed, len(pending))
}
