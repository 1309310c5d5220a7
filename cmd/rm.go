package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/errs"
)

// Remove securely deletes photos from the vault
func Remove(ctx context.Context, configPath string, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one photo ID\n")
		fmt.Fprintf(os.Stderr, "Usage: photovault rm <id> [id...]\n")
		os.Exit(1)
	}

	app := Open(ctx, configPath)
	defer app.Close()

	failed := 0
	for _, id := range ids {
		if err := app.Store.Delete(ctx, id); err != nil {
			app.Log.Debug().Err(err).Str("id", id).Msg("delete failed")
			fmt.Fprintf(os.Stderr, "  ✗ %s: %s\n", id, errs.Message(err))
			failed++
			continue
		}
		fmt.Printf("  ✓ removed %s\n", id)
	}

	// Compact database to reclaim space
	if err := app.Store.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	if failed > 0 {
		app.Close()
		os.Exit(1)
	}
}
