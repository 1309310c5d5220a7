package cmd

import (
	"context"
	"fmt"
)

// Init creates the vault layout and its master key.
func Init(ctx context.Context, configPath string) {
	app := Open(ctx, configPath)
	defer app.Close()

	app.Unlock()

	fmt.Printf("Initialized vault at %s\n", app.Store.Root())
	fmt.Printf("Vault ID: %s\n", app.Store.VaultID())
	fmt.Printf("Key source: %s\n", app.Config.Keys.Source)
}
