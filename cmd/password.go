package cmd

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/photovault/internal/crypto"
)

// PasswordEnv supplies the password non-interactively.
const PasswordEnv = "PHOTOVAULT_PASSWORD"

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// passwordFromEnv returns a copy of $PHOTOVAULT_PASSWORD, or nil.
func passwordFromEnv() []byte {
	password := os.Getenv(PasswordEnv)
	if password == "" {
		return nil
	}
	return []byte(password)
}

// GetPassword retrieves password from environment or prompts user.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(prompt string) ([]byte, error) {
	if password := passwordFromEnv(); password != nil {
		return password, nil
	}
	password, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password required")
	}
	return password, nil
}

// GetPasswordConfirm is GetPassword with a confirmation prompt.
func GetPasswordConfirm(prompt string) ([]byte, error) {
	if password := passwordFromEnv(); password != nil {
		return password, nil
	}

	first, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(first)

	second, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if len(first) == 0 {
		return nil, fmt.Errorf("password required")
	}
	if !crypto.ConstantTimeCompare(first, second) {
		return nil, fmt.Errorf("passwords do not match")
	}

	result := make([]byte, len(first))
	copy(result, first)
	return result, nil
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}
