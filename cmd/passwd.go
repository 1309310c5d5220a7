package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/config"
	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/keys"
)

// Passwd re-wraps the master key under a new password. Stored photos are
// not rewritten since the master key itself does not change.
func Passwd(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	if app.Config.Keys.Source != config.KeySourcePassword {
		fmt.Fprintf(os.Stderr, "Error: passwd requires keys.source=%s (current: %s)\n",
			config.KeySourcePassword, app.Config.Keys.Source)
		app.Close()
		os.Exit(1)
	}

	current, err := ReadPassword("Enter current password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		app.Close()
		os.Exit(1)
	}
	defer crypto.ClearBytes(current)

	next, err := GetPasswordConfirm("Enter new password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		app.Close()
		os.Exit(1)
	}
	defer crypto.ClearBytes(next)

	if err := keys.ChangeKeyFilePassword(app.keyFilePath(), current, next); err != nil {
		app.Fail(err)
	}

	fmt.Println("password changed successfully")
}
