package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/backup"
	"github.com/illarion/photovault/internal/config"
	"github.com/illarion/photovault/internal/crypto"
	"github.com/illarion/photovault/internal/eraser"
	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/keys"
	"github.com/illarion/photovault/internal/logging"
	"github.com/illarion/photovault/internal/metrics"
	"github.com/illarion/photovault/internal/thumbnail"
	"github.com/illarion/photovault/internal/vault"
)

// KeyFileName is the password-wrapped master key inside the vault root.
const KeyFileName = "master.key"

// App bundles the components a command needs.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Store  *vault.Store
	Codec  *backup.Codec

	vaultID   string
	provider  *keys.Deferred
	key       *keys.AEAD
	logCloser io.Closer
}

// Load reads configuration and builds the logger. Commands that do not
// touch the vault (completion, help) never call it.
func Load(configPath string) (*config.Config, zerolog.Logger, io.Closer) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return cfg, log, closer
}

// Open loads configuration, opens the vault and initializes it.
// The master key is resolved lazily, so commands that only read the index
// never prompt for a password.
func Open(ctx context.Context, configPath string) *App {
	cfg, log, closer := Load(configPath)

	app := &App{Config: cfg, Log: log, logCloser: closer}

	cache := thumbnail.NewCache(
		thumbnail.WithLimitBytes(cfg.Cache.LimitBytes),
		thumbnail.WithMaxDimension(cfg.Vault.ThumbnailMaxDimension),
		thumbnail.WithQuality(cfg.Vault.ThumbnailQuality),
		thumbnail.WithLogger(log),
	)
	er := eraser.New(
		eraser.WithChunkSize(cfg.Eraser.ChunkSize),
		eraser.WithFillByte(byte(cfg.Eraser.FillByte)),
		eraser.WithLogger(log),
	)

	app.provider = keys.NewDeferred(app.resolveKey)
	app.Store = vault.New(cfg.Vault.Root, app.provider,
		vault.WithEraser(er),
		vault.WithCache(cache),
		vault.WithLogger(log),
	)
	if err := app.Store.Initialize(ctx); err != nil {
		app.Close()
		HandleError(err)
	}
	// Captured here: the key resolves inside store calls that hold its lock.
	app.vaultID = app.Store.VaultID()

	app.Codec = backup.New(app.Store, app.Store.TempDir(),
		backup.WithIterations(cfg.Backup.KDFIterations),
		backup.WithDeviceName(cfg.Backup.DeviceName),
		backup.WithLogger(log),
	)
	return app
}

func (a *App) keyFilePath() string {
	return filepath.Join(a.Config.Vault.Root, KeyFileName)
}

func (a *App) resolveKey() (keys.Provider, error) {
	suite := a.Config.CipherSuite()

	var (
		key *keys.AEAD
		err error
	)
	switch a.Config.Keys.Source {
	case config.KeySourcePassword:
		var password []byte
		if _, statErr := os.Stat(a.keyFilePath()); errors.Is(statErr, os.ErrNotExist) {
			password, err = GetPasswordConfirm("Choose vault password: ")
		} else {
			password, err = GetPassword("Enter vault password: ")
		}
		if err != nil {
			return nil, errs.E(errs.ErrInvalidInput, "cmd.resolveKey", err)
		}
		defer crypto.ClearBytes(password)
		key, err = keys.OpenKeyFile(a.keyFilePath(), password, suite)
	default:
		key, err = keys.NewKeyringProvider(a.vaultID, suite)
	}
	if err != nil {
		return nil, err
	}
	a.key = key
	return key, nil
}

// Unlock resolves the master key now instead of on first use.
func (a *App) Unlock() {
	if err := a.provider.Resolve(); err != nil {
		a.Close()
		HandleError(err)
	}
}

// Close releases the vault, wipes the key and flushes metrics.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("closing vault")
		}
	}
	if a.key != nil {
		a.key.Destroy()
	}
	if path := a.Config.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.Log.Warn().Err(err).Str("path", path).Msg("writing metrics textfile")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// Fail logs the detailed cause, closes the app and exits.
func (a *App) Fail(err error) {
	a.Log.Debug().Err(err).Msg("command failed")
	a.Close()
	HandleError(err)
}

// HandleError prints a user-facing message for err and exits.
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrMetadataCorrupted):
		fmt.Fprintf(os.Stderr, "Error: the vault index is damaged and could not be rebuilt\n")
	case errors.Is(err, keys.ErrWrongPassword), errors.Is(err, backup.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong password\n")
	case errors.Is(err, backup.ErrNothingExported):
		fmt.Fprintf(os.Stderr, "Error: no photos could be exported\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", errs.Message(err))
	}
	os.Exit(1)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
