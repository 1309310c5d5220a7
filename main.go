package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/illarion/photovault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(ctx, os.Args[2:])
	case "add":
		runAdd(ctx, os.Args[2:])
	case "get":
		runGet(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "ls":
		runLs(ctx, os.Args[2:])
	case "meta":
		runMeta(ctx, os.Args[2:])
	case "thumbs":
		runThumbs(ctx, os.Args[2:])
	case "stats":
		runStats(ctx, os.Args[2:])
	case "backup":
		runBackup(ctx, os.Args[2:])
	case "restore":
		runRestore(ctx, os.Args[2:])
	case "inspect":
		runInspect(ctx, os.Args[2:])
	case "passwd":
		runPasswd(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	config := fs.String("config", "", "Path to config file")
	return fs, config
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// singleArg returns the only positional argument or exits with usage.
func singleArg(fs *flag.FlagSet, usage string) string {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usage)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runInit(ctx context.Context, args []string) {
	fs, config := newFlagSet("init")
	parse(fs, args)

	cmd.Init(ctx, *config)
}

func runAdd(ctx context.Context, args []string) {
	fs, config := newFlagSet("add")
	favorite := fs.Bool("favorite", false, "Mark photos as favorite")
	var tags, albums stringList
	fs.Var(&tags, "tag", "Add a tag (repeatable)")
	fs.Var(&albums, "album", "Add to an album (repeatable)")
	parse(fs, args)

	cmd.Add(ctx, *config, fs.Args(), cmd.AddOptions{
		Favorite: *favorite,
		Tags:     tags,
		Albums:   albums,
	})
}

func runGet(ctx context.Context, args []string) {
	fs, config := newFlagSet("get")
	output := fs.String("o", "", "Write the photo to this file instead of stdout")
	parse(fs, args)

	id := singleArg(fs, "photovault get [-o file] <id>")
	cmd.Get(ctx, *config, id, *output)
}

func runRm(ctx context.Context, args []string) {
	fs, config := newFlagSet("rm")
	parse(fs, args)

	cmd.Remove(ctx, *config, fs.Args())
}

func runLs(ctx context.Context, args []string) {
	fs, config := newFlagSet("ls")
	parse(fs, args)

	cmd.List(ctx, *config)
}

func runMeta(ctx context.Context, args []string) {
	fs, config := newFlagSet("meta")
	favorite := fs.String("favorite", "", "Set favorite flag (true or false)")
	dryRun := fs.Bool("dry-run", false, "Show the change without saving it")
	var tags, untags, albums stringList
	fs.Var(&tags, "tag", "Add a tag (repeatable)")
	fs.Var(&untags, "untag", "Remove a tag (repeatable)")
	fs.Var(&albums, "album", "Add to an album (repeatable)")
	parse(fs, args)

	id := singleArg(fs, "photovault meta [flags] <id>")
	cmd.Meta(ctx, *config, id, cmd.MetaOptions{
		Favorite:   *favorite,
		AddTags:    tags,
		RemoveTags: untags,
		AddAlbums:  albums,
		DryRun:     *dryRun,
	})
}

func runThumbs(ctx context.Context, args []string) {
	fs, config := newFlagSet("thumbs")
	regenerate := fs.Bool("regenerate", false, "Regenerate missing or failed thumbnails")
	parse(fs, args)

	cmd.Thumbs(ctx, *config, *regenerate)
}

func runStats(ctx context.Context, args []string) {
	fs, config := newFlagSet("stats")
	parse(fs, args)

	cmd.Stats(ctx, *config)
}

func runBackup(ctx context.Context, args []string) {
	fs, config := newFlagSet("backup")
	output := fs.String("o", "", "Backup file to create")
	parse(fs, args)

	cmd.Backup(ctx, *config, *output, fs.Args())
}

func runRestore(ctx context.Context, args []string) {
	fs, config := newFlagSet("restore")
	parse(fs, args)

	path := singleArg(fs, "photovault restore <file>")
	cmd.Restore(ctx, *config, path)
}

func runInspect(ctx context.Context, args []string) {
	fs, config := newFlagSet("inspect")
	parse(fs, args)

	path := singleArg(fs, "photovault inspect <file>")
	cmd.Inspect(ctx, *config, path)
}

func runPasswd(ctx context.Context, args []string) {
	fs, config := newFlagSet("passwd")
	parse(fs, args)

	cmd.Passwd(ctx, *config)
}

func runKeyring(ctx context.Context, args []string) {
	fs, config := newFlagSet("keyring")
	force := fs.Bool("force", false, "Delete even when the keyring holds the only key copy")
	parse(fs, args)

	switch fs.Arg(0) {
	case "status", "":
		cmd.KeyringStatus(ctx, *config)
	case "delete":
		cmd.KeyringDelete(ctx, *config, *force)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", fs.Arg(0))
		fmt.Fprintln(os.Stderr, "Usage: photovault keyring <status|delete>")
		os.Exit(1)
	}
}

func runCompact(ctx context.Context, args []string) {
	fs, config := newFlagSet("compact")
	parse(fs, args)

	cmd.Compact(ctx, *config)
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: photovault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("photovault - Encrypted local photo vault")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  photovault <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create the vault and its master key")
	fmt.Println("  add         Encrypt and store photos")
	fmt.Println("  get         Decrypt a photo")
	fmt.Println("  rm          Securely delete photos")
	fmt.Println("  ls          List stored photos")
	fmt.Println("  meta        Show or edit photo metadata")
	fmt.Println("  thumbs      List or regenerate missing thumbnails")
	fmt.Println("  stats       Show vault statistics")
	fmt.Println("  backup      Export photos to an encrypted backup file")
	fmt.Println("  restore     Import photos from a backup file")
	fmt.Println("  inspect     Show the contents of a backup file")
	fmt.Println("  passwd      Change the master key password")
	fmt.Println("  keyring     Manage the master key in the OS keyring")
	fmt.Println("  compact     Compact the vault index")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Every command accepts --config <file>. Settings may also come from")
	fmt.Println("PHOTOVAULT_* environment variables, e.g. PHOTOVAULT_VAULT_ROOT.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  photovault init                        # Create new vault")
	fmt.Println("  photovault add --tag trip *.jpg        # Store photos")
	fmt.Println("  photovault backup -o photos.lucb       # Back up everything")
	fmt.Println()
	fmt.Println("Use 'photovault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("photovault init")
		fmt.Println()
		fmt.Println("Creates the vault directory layout and its master key.")
		fmt.Println("With keys.source=keyring the key is generated and stored in the OS keyring.")
		fmt.Println("With keys.source=password the key is wrapped with a password you choose.")
	case "add":
		fmt.Println("photovault add [--favorite] [--tag t]... [--album a]... <file> [file...]")
		fmt.Println()
		fmt.Println("Encrypts and stores each file under a new photo ID.")
		fmt.Println("A thumbnail is generated when the file is a decodable image.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  photovault add IMG_0001.jpg")
		fmt.Println("  photovault add --album summer --tag beach *.jpg")
	case "get":
		fmt.Println("photovault get [-o file] <id>")
		fmt.Println()
		fmt.Println("Decrypts a photo to a file or to stdout.")
	case "rm":
		fmt.Println("photovault rm <id> [id...]")
		fmt.Println()
		fmt.Println("Securely erases photos and their thumbnails.")
		fmt.Println("Files are overwritten three times before removal.")
	case "ls":
		fmt.Println("photovault ls")
		fmt.Println()
		fmt.Println("Lists stored photos. Does not require the master key.")
	case "meta":
		fmt.Println("photovault meta [--favorite true|false] [--tag t] [--untag t] [--album a] [--dry-run] <id>")
		fmt.Println()
		fmt.Println("Without edit flags, prints the photo's metadata.")
		fmt.Println("With edit flags, prints a diff of the change and saves it.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --dry-run   Show the diff without saving")
	case "thumbs":
		fmt.Println("photovault thumbs [--regenerate]")
		fmt.Println()
		fmt.Println("Lists photos whose thumbnail is missing or failed.")
		fmt.Println("With --regenerate, tries to rebuild them from the stored photos.")
	case "stats":
		fmt.Println("photovault stats")
		fmt.Println()
		fmt.Println("Shows photo count, total size and thumbnail cache usage.")
	case "backup":
		fmt.Println("photovault backup -o <file> [id...]")
		fmt.Println()
		fmt.Println("Exports photos into a password-protected backup file.")
		fmt.Println("Exports every photo when no IDs are given. Photos that cannot be")
		fmt.Println("read are skipped and reported.")
	case "restore":
		fmt.Println("photovault restore <file>")
		fmt.Println()
		fmt.Println("Imports every photo from a backup file as new photos.")
	case "inspect":
		fmt.Println("photovault inspect <file>")
		fmt.Println()
		fmt.Println("Shows the manifest of a backup file without importing anything.")
	case "passwd":
		fmt.Println("photovault passwd")
		fmt.Println()
		fmt.Println("Changes the password protecting the master key (keys.source=password).")
		fmt.Println("Stored photos are not re-encrypted.")
	case "keyring":
		fmt.Println("photovault keyring [--force] <status|delete>")
		fmt.Println()
		fmt.Println("Shows or removes the vault's master key in the OS keyring.")
	case "compact":
		fmt.Println("photovault compact")
		fmt.Println()
		fmt.Println("Compacts the vault index to reclaim unused disk space.")
		fmt.Println("This is done automatically after 'rm'.")
	case "completion":
		fmt.Println("photovault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(photovault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(photovault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  photovault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
