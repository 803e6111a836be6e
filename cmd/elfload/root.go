// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds state shared by every subcommand: the resolved config
// and the logger the whole run writes through.
type rootOptions struct {
	configPath string
	config     *config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{logger: slog.Default()}

	cmd := &cobra.Command{
		Use:   "elfload",
		Short: "Load and relocate Thumb-2 / ARMv7-M relocatable ELF objects",
		Long: `elfload drives the position-independent dynamic loader core against a
relocatable ELF object built for Thumb-2 / ARMv7-M, the same format used by
the Flipper Zero's application loader. It is a thin host harness around the
loader package: the symbol table, allocator, and scheduler it supplies are
reference implementations, not production-grade ones.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML/TOML/JSON config file naming the host symbol table")

	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))

	return cmd
}

// Execute runs the CLI and exits the process with status 1 on failure.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
