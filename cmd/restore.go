package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/crypto"
)

// Restore imports every photo of a backup container as new objects.
func Restore(ctx context.Context, configPath, path string) {
	app := Open(ctx, configPath)
	defer app.Close()

	password := GetPasswordOrExit("Backup password: ")
	defer crypto.ClearBytes(password)

	res, err := app.Codec.RestoreBackup(ctx, path, password, printProgress)
	if err != nil {
		app.Fail(err)
	}

	for id, reason := range res.Failed {
		app.Log.Warn().Err(reason).Str("id", id).Msg("photo not restored")
		fmt.Fprintf(os.Stderr, "  ✗ could not restore %s\n", id)
	}
	fmt.Printf("Restored %d of %d photos\n", res.Imported, res.Manifest.PhotoCount)
}

// Inspect prints a backup's manifest without importing anything.
func Inspect(ctx context.Context, configPath, path string) {
	app := Open(ctx, configPath)
	defer app.Close()

	password := GetPasswordOrExit("Backup password: ")
	defer crypto.ClearBytes(password)

	m, err := app.Codec.ReadMetadataOnly(ctx, path, password)
	if err != nil {
		app.Fail(err)
	}

	fmt.Printf("Backup: %s\n", path)
	fmt.Printf("Created: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Device: %s\n", m.DeviceName)
	fmt.Printf("Photos: %d (%s)\n", m.PhotoCount, formatSize(m.TotalSize))
	for _, p := range m.Photos {
		name := p.Metadata.OriginalFilename
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %s  %s (%s)\n", p.ID, name, formatSize(p.Metadata.FileSize))
	}
}
