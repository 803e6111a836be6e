// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
	"github.com/lucaspwo/flipperzero-firmware/elfload/hostsim"
	"github.com/lucaspwo/flipperzero-firmware/elfload/loader"
)

var (
	colorSection = color.New(color.FgCyan)
	colorAddr    = color.New(color.FgMagenta)
	colorOK      = color.New(color.FgGreen, color.Bold)
	colorWarn    = color.New(color.FgYellow, color.Bold)
	colorErr     = color.New(color.FgRed, color.Bold)
)

func newLoadCommand(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "load <elf-file>",
		Short: "Load one relocatable ELF object and print its memory map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, img, err := loadOneFile(args[0], opts, strict)
			if img != nil {
				defer img.Close()
			}
			if err != nil {
				colorErr.Fprintf(cmd.OutOrStderr(), "load failed: %v\n", err)
				return err
			}

			switch status {
			case loader.StatusSuccess:
				colorOK.Fprintln(cmd.OutOrStdout(), "load succeeded")
			case loader.StatusMissingImports:
				colorWarn.Fprintln(cmd.OutOrStdout(), "load completed with missing imports")
			}

			for _, entry := range img.MemoryMap {
				colorSection.Fprintf(cmd.OutOrStdout(), "%-10s", entry.Name)
				fmt.Fprint(cmd.OutOrStdout(), " -> ")
				colorAddr.Fprintf(cmd.OutOrStdout(), "0x%08x\n", entry.Address)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry point: ")
			colorAddr.Fprintf(cmd.OutOrStdout(), "0x%08x\n", img.EntryPoint)

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", true, "reject files that aren't 32-bit little-endian ARM relocatable objects")
	return cmd
}

// loadOneFile drives a single Image through the four external operations
// and returns its final status.
func loadOneFile(path string, opts *rootOptions, strict bool) (loader.Status, *loader.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return loader.StatusUnspecifiedError, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	loaderOpts := []loader.Option{
		loader.WithLogger(opts.logger),
		loader.WithYieldInterval(opts.config.YieldInterval),
	}
	if strict {
		loaderOpts = append(loaderOpts, loader.WithStrictValidation())
	}

	img := loader.New(
		cursor.NewFile(f),
		hostsim.NewMapResolver(opts.config.Symbols),
		hostsim.NewHeapAllocator(),
		hostsim.NoopScheduler{},
		loaderOpts...,
	)

	if err := img.LoadHeaders(); err != nil {
		return loader.StatusUnspecifiedError, img, fmt.Errorf("reading headers: %w", err)
	}
	if err := img.LoadSectionTable(); err != nil {
		return loader.StatusUnspecifiedError, img, fmt.Errorf("classifying sections: %w", err)
	}
	status, relocErr := img.LoadSections()
	if status == loader.StatusUnspecifiedError {
		return status, img, fmt.Errorf("loading sections: %w", relocErr)
	}
	return status, img, nil
}
