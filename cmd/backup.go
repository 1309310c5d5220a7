package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/illarion/photovault/internal/backup"
	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/storage"
)

// Backup exports photos into a password-protected container.
// With no ids every photo is exported.
func Backup(ctx context.Context, configPath, output string, ids []string) {
	if output == "" {
		fmt.Fprintf(os.Stderr, "Error: backup requires -o <file>\n")
		os.Exit(1)
	}

	app := Open(ctx, configPath)
	defer app.Close()

	objects := app.Store.List()
	if len(ids) > 0 {
		objects = slices.DeleteFunc(objects, func(o storage.Object) bool {
			return !slices.Contains(ids, o.ID)
		})
	}
	if len(objects) == 0 {
		fmt.Println("No photos to back up")
		return
	}

	password, err := GetPasswordConfirm("Backup password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		app.Close()
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	res, err := app.Codec.CreateBackup(ctx, password, objects, output, printProgress)
	if err != nil {
		app.Fail(err)
	}

	for id, reason := range res.Failed {
		app.Log.Warn().Err(reason).Str("id", id).Msg("photo skipped")
		fmt.Fprintf(os.Stderr, "  ✗ skipped %s\n", id)
	}
	fmt.Printf("Backed up %d photos to %s\n", res.Exported, res.Path)
}

// printProgress renders one line per phase change and item.
func printProgress(p backup.Progress) {
	switch p.Phase {
	case backup.PhaseReading:
		fmt.Fprintf(os.Stderr, "\r%s %s / %s", p.Phase, formatSize(p.Current), formatSize(p.Total))
		if p.Current == p.Total {
			fmt.Fprintln(os.Stderr)
		}
	case backup.PhaseComplete:
		fmt.Fprintln(os.Stderr, "done")
	default:
		if p.Item != "" {
			fmt.Fprintf(os.Stderr, "%s [%d/%d] %s\n", p.Phase, p.Current, p.Total, p.Item)
		}
	}
}
