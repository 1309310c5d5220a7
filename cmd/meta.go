package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/illarion/photovault/internal/storage"
)

// MetaOptions are the edits requested by the meta command.
type MetaOptions struct {
	Favorite   string // "true", "false" or "" to leave unchanged
	AddTags    []string
	RemoveTags []string
	AddAlbums  []string
	DryRun     bool
}

// Meta shows or edits the metadata of one photo.
func Meta(ctx context.Context, configPath, id string, opts MetaOptions) {
	app := Open(ctx, configPath)
	defer app.Close()

	obj, ok := app.Store.Get(id)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: photo %s not found\n", id)
		app.Close()
		os.Exit(1)
	}

	updated, err := applyMetaOptions(obj.Metadata, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		app.Close()
		os.Exit(1)
	}

	diff, err := metadataDiff(obj.Metadata, updated)
	if err != nil {
		app.Fail(err)
	}
	if diff == "" {
		out, err := json.MarshalIndent(obj.Metadata, "", "  ")
		if err != nil {
			app.Fail(err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Print(diff)
	if opts.DryRun {
		fmt.Println("(dry run, nothing changed)")
		return
	}
	if err := app.Store.UpdateMetadata(ctx, id, updated); err != nil {
		app.Fail(err)
	}
	fmt.Println("Metadata updated")
}

func applyMetaOptions(meta storage.PhotoMetadata, opts MetaOptions) (storage.PhotoMetadata, error) {
	out := meta.Clone()

	switch opts.Favorite {
	case "":
	case "true":
		out.IsFavorite = true
	case "false":
		out.IsFavorite = false
	default:
		return out, fmt.Errorf("--favorite must be true or false, got %q", opts.Favorite)
	}

	for _, tag := range opts.AddTags {
		if !slices.Contains(out.Tags, tag) {
			out.Tags = append(out.Tags, tag)
		}
	}
	out.Tags = slices.DeleteFunc(out.Tags, func(tag string) bool {
		return slices.Contains(opts.RemoveTags, tag)
	})
	for _, album := range opts.AddAlbums {
		if !slices.Contains(out.Albums, album) {
			out.Albums = append(out.Albums, album)
		}
	}
	return out, nil
}

// metadataDiff renders a line diff of the JSON form of two metadata values.
// It returns "" when they are equal.
func metadataDiff(before, after storage.PhotoMetadata) (string, error) {
	a, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return "", err
	}
	if string(a) == string(b) {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(a)+"\n", string(b)+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var result strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			result.WriteString(prefix)
			result.WriteString(line)
		}
	}
	return result.String(), nil
}
