// cmd/szarc/password.go

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptSentinel marks --password given without a value. argv strings
// cannot contain NUL, so no real password collides with it.
const promptSentinel = "\x00prompt"

// addPasswordFlag registers --password/-p with an optional value:
// `--password secret` uses the given value, a bare `--password` prompts
// on the terminal without echo.
func addPasswordFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "password", "p", "", "Encrypt/decrypt with a password (prompts when no value is given)")
	cmd.Flags().Lookup("password").NoOptDefVal = promptSentinel
}

// resolvePassword turns the flag state into password bytes, prompting
// when requested. Returns nil when the flag was not used.
func resolvePassword(cmd *cobra.Command, value string, confirm bool) ([]byte, error) {
	if !cmd.Flags().Changed("password") {
		return nil, nil
	}
	if value != promptSentinel {
		return []byte(value), nil
	}

	pw, err := promptPassword("Password: ")
	if err != nil {
		return nil, err
	}
	if !confirm {
		return pw, nil
	}

	again, err := promptPassword("Confirm password: ")
	if err != nil {
		wipeBytes(pw)
		return nil, err
	}
	defer wipeBytes(again)
	if string(pw) != string(again) {
		wipeBytes(pw)
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

func promptPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("empty password")
	}
	return pw, nil
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
