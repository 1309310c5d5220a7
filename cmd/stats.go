package cmd

import (
	"context"
	"fmt"
)

// Stats shows vault and thumbnail cache statistics. No key is needed.
func Stats(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	st := app.Store.StorageStats()
	cs := app.Store.CacheStats()

	fmt.Printf("Vault: %s\n", app.Store.Root())
	fmt.Printf("Vault ID: %s\n", app.Store.VaultID())
	fmt.Printf("Key source: %s (%s)\n", app.Config.Keys.Source, app.Config.Keys.Cipher)
	fmt.Println()
	fmt.Printf("Photos: %d\n", st.Count)
	fmt.Printf("Total size: %s\n", formatSize(st.TotalSize))
	if st.Recovered > 0 {
		fmt.Printf("Recovered entries: %d\n", st.Recovered)
	}
	if !st.Modified.IsZero() {
		fmt.Printf("Last modified: %s\n", st.Modified.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Needing thumbnails: %d\n", len(app.Store.PhotosNeedingThumbnails()))
	fmt.Println()
	fmt.Printf("Thumbnail cache: %d entries, %s of %s\n", cs.Count, formatSize(cs.Bytes), formatSize(cs.LimitBytes))
	fmt.Printf("Thumbnail size: %dpx, quality %d\n", cs.MaxDimension, cs.Quality)
}
