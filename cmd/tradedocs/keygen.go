package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tradedocs/internal/secure"
)

func keygenCmd(c *cli) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encryption key for ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secure.GenerateKey()
			if err != nil {
				return err
			}
			encoded := secure.EncodeKey(key)
			if !write {
				fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return nil
			}

			path := c.cfg.Security.KeyFile
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; remove it first", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Write the key to ENCRYPTION_KEY_FILE instead of stdout")
	return cmd
}
