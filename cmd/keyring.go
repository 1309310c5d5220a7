package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/photovault/internal/config"
	"github.com/illarion/photovault/internal/keyring"
)

// KeyringStatus checks if a master key is stored in the keyring
func KeyringStatus(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	fmt.Printf("Key source: %s\n", app.Config.Keys.Source)
	if keyring.HasKey(app.Store.VaultID()) {
		fmt.Println("Master key: stored in keyring")
	} else {
		fmt.Println("Master key: not stored")
	}
}

// KeyringDelete removes the master key from the OS keyring. With the
// keyring source this makes every stored photo unreadable, so force is
// required.
func KeyringDelete(ctx context.Context, configPath string, force bool) {
	app := Open(ctx, configPath)
	defer app.Close()

	if app.Config.Keys.Source == config.KeySourceKeyring && !force {
		fmt.Fprintln(os.Stderr, "Error: the keyring holds the only copy of this vault's master key")
		fmt.Fprintln(os.Stderr, "Deleting it makes all photos unreadable. Re-run with --force to proceed.")
		app.Close()
		os.Exit(1)
	}

	if err := keyring.DeleteKey(app.Store.VaultID()); err != nil {
		fmt.Println("No master key stored in keyring")
		return
	}
	fmt.Println("Master key removed from keyring")
}
