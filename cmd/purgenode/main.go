// Command purgenode runs a single-authority purge game chain.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/purgechain/config"
	"github.com/tolelom/purgechain/wallet"
)

// passwordEnv holds the keystore password. Flags would leak it through ps.
const passwordEnv = "PURGE_PASSWORD"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:          "purgenode",
		Short:        "Purge game chain node",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to config file")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newGenKeyCmd(&cfgPath),
		newInitConfigCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newGenKeyCmd(cfgPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a node key and store it in an encrypted keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				cfg, err := loadConfig(*cfgPath)
				if err != nil {
					return err
				}
				out = cfg.KeyFile
			}
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := w.Save(out, password()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nsaved to:   %s\n", w.PubKey(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "keystore path (default: key_file from config)")
	return cmd
}

func newInitConfigCmd(cfgPath *string) *cobra.Command {
	var validator string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a development config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*cfgPath); err == nil {
				return fmt.Errorf("%s already exists", *cfgPath)
			}
			cfg := config.DefaultConfig()
			if validator != "" {
				cfg.Validators = []string{validator}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, *cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", *cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&validator, "validator", "", "validator public key hex")
	return cmd
}

// loadConfig reads path, falling back to defaults plus the environment
// when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", err)
	}
	slog.Warn("config file not found, using defaults", "path", path)
	cfg = config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func password() string {
	p := os.Getenv(passwordEnv)
	if p == "" {
		slog.Warn("keystore password not set; using an empty password", "env", passwordEnv)
	}
	return p
}
