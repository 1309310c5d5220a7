package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/illarion/photovault/internal/storage"
)

// List shows photos stored in the vault. No key is needed.
func List(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	objects := app.Store.List()
	if len(objects) == 0 {
		fmt.Println("No photos in vault")
		return
	}

	fmt.Printf("Photos (%d):\n", len(objects))
	for _, obj := range objects {
		fmt.Println(formatObject(obj))
	}
}

func formatObject(obj storage.Object) string {
	name := obj.Metadata.OriginalFilename
	if name == "" {
		name = "(unnamed)"
	}

	var flags []string
	if obj.Metadata.IsFavorite {
		flags = append(flags, "favorite")
	}
	if obj.Recovered {
		flags = append(flags, "recovered")
	}
	if obj.NeedsThumbnail() {
		flags = append(flags, "no thumbnail")
	}

	line := fmt.Sprintf("  %s  %s (%s)", obj.ID, name, formatSize(obj.Metadata.FileSize))
	if obj.Metadata.Width > 0 && obj.Metadata.Height > 0 {
		line += fmt.Sprintf(" %dx%d", obj.Metadata.Width, obj.Metadata.Height)
	}
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}
