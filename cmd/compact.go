package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact compacts the vault index to reclaim unused space
func Compact(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	path := app.Store.IndexPath()

	info, err := os.Stat(path)
	if err != nil {
		app.Fail(err)
	}
	sizeBefore := info.Size()

	if err := app.Store.Compact(); err != nil {
		app.Fail(err)
	}

	info, err = os.Stat(path)
	if err != nil {
		app.Fail(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
