package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_photovault() {
    local cur prev words cword
    _init_completion || return

    local commands="init add get rm ls meta thumbs stats backup restore inspect passwd keyring compact help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        add)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--favorite --tag --album --config" -- "$cur"))
            else
                _filedir
            fi
            ;;
        get|rm|meta)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-o --favorite --tag --untag --album --dry-run --config" -- "$cur"))
            else
                local ids
                ids=$(photovault ls 2>/dev/null | awk 'NR>1 {print $1}')
                COMPREPLY=($(compgen -W "$ids" -- "$cur"))
            fi
            ;;
        thumbs)
            COMPREPLY=($(compgen -W "--regenerate --config" -- "$cur"))
            ;;
        backup)
            if [[ "$prev" == "-o" ]]; then
                _filedir
            else
                COMPREPLY=($(compgen -W "-o --config" -- "$cur"))
            fi
            ;;
        restore|inspect)
            _filedir
            ;;
        keyring)
            COMPREPLY=($(compgen -W "status delete" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _photovault photovault
`

const zshCompletion = `#compdef photovault

_photovault() {
    local -a commands
    commands=(
        'init:Create the vault and its master key'
        'add:Encrypt and store photos'
        'get:Decrypt a photo'
        'rm:Securely delete photos'
        'ls:List stored photos'
        'meta:Show or edit photo metadata'
        'thumbs:List or regenerate missing thumbnails'
        'stats:Show vault statistics'
        'backup:Export photos to an encrypted backup'
        'restore:Import photos from a backup'
        'inspect:Show the contents of a backup'
        'passwd:Change the master key password'
        'keyring:Manage the master key in the OS keyring'
        'compact:Compact the vault index'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'photovault commands' commands
            ;;
        args)
            case "${words[2]}" in
                add)
                    _arguments \
                        '--favorite[Mark as favorite]' \
                        '*--tag[Add a tag]:tag:' \
                        '*--album[Add to an album]:album:' \
                        '*:photo:_files'
                    ;;
                get|rm|meta)
                    _arguments '*:photo id:_photovault_ids'
                    ;;
                thumbs)
                    _arguments '--regenerate[Regenerate missing thumbnails]'
                    ;;
                backup)
                    _arguments '-o[Output file]:file:_files'
                    ;;
                restore|inspect)
                    _arguments '1:backup file:_files'
                    ;;
                keyring)
                    _values 'subcommand' status delete
                    ;;
                help)
                    _describe -t commands 'photovault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_photovault_ids() {
    local -a ids
    ids=(${(f)"$(photovault ls 2>/dev/null | awk 'NR>1 {print $1}')"})
    _describe -t ids 'photo ids' ids
}

_photovault "$@"
`

const fishCompletion = `# photovault fish completions

set -l commands init add get rm ls meta thumbs stats backup restore inspect passwd keyring compact help completion

complete -c photovault -f

complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create the vault'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a add -d 'Encrypt and store photos'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a get -d 'Decrypt a photo'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Securely delete photos'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List stored photos'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a meta -d 'Show or edit metadata'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a thumbs -d 'Missing thumbnails'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a stats -d 'Show vault statistics'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a backup -d 'Export an encrypted backup'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a restore -d 'Import a backup'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a inspect -d 'Show backup contents'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change password'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage keyring entry'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact the index'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c photovault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# add flags and files
complete -c photovault -n "__fish_seen_subcommand_from add" -l favorite -d 'Mark as favorite'
complete -c photovault -n "__fish_seen_subcommand_from add" -l tag -r -d 'Add a tag'
complete -c photovault -n "__fish_seen_subcommand_from add" -l album -r -d 'Add to an album'
complete -c photovault -n "__fish_seen_subcommand_from add" -F

# meta flags
complete -c photovault -n "__fish_seen_subcommand_from meta" -l dry-run -d 'Show the change only'
complete -c photovault -n "__fish_seen_subcommand_from meta" -l favorite -r -a "true false"

# thumbs flags
complete -c photovault -n "__fish_seen_subcommand_from thumbs" -l regenerate -d 'Regenerate missing thumbnails'

# backup files
complete -c photovault -n "__fish_seen_subcommand_from backup" -s o -r -F
complete -c photovault -n "__fish_seen_subcommand_from restore inspect" -F

# keyring subcommands
complete -c photovault -n "__fish_seen_subcommand_from keyring" -a "status delete"

# help completions
complete -c photovault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c photovault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
