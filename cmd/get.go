package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/fsutil"
)

// Get decrypts a photo to output, or to stdout when output is empty.
func Get(ctx context.Context, configPath, id, output string) {
	app := Open(ctx, configPath)
	defer app.Close()

	data, err := app.Store.Retrieve(ctx, id)
	if err != nil {
		app.Fail(err)
	}
	defer crypto.ClearBytes(data)

	if output == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			app.Fail(err)
		}
		return
	}

	if err := fsutil.WriteFileAtomic(output, data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		app.Close()
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%s)\n", output, formatSize(int64(len(data))))
}
