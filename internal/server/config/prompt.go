package config

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/dekinai/internal/shared"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var promptOut io.Writer = os.Stderr

func promptPassword(config *Config) error {
	if _, err := fmt.Fprint(promptOut, "Upload password: "); err != nil {
		return err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(promptOut)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer shared.WipeByteArray(pw)

	config.Password = string(pw)
	return nil
}
