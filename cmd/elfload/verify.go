// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/lucaspwo/flipperzero-firmware/elfload/loader"
)

type verifyResult struct {
	path   string
	status loader.Status
	err    error
}

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	var concurrency int64
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify <directory>",
		Short: "Load every .elf/.fap file in a directory concurrently and report pass/fail",
		Long: `verify walks a directory for .elf and .fap files and loads each one through
its own loader.Image, bounding how many run at once with a weighted
semaphore (§5 of the loader's concurrency model allows this: images are
independent, only one goroutine ever touches a given image). It's meant
for smoke-testing a build's output directory, not for production use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := findObjectFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				colorWarn.Fprintln(cmd.OutOrStdout(), "no .elf or .fap files found")
				return nil
			}

			results := verifyAll(context.Background(), files, opts, strict, concurrency)

			var failures int
			for _, r := range results {
				switch {
				case r.err != nil:
					failures++
					colorErr.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", r.path, r.err)
				case r.status == loader.StatusMissingImports:
					colorWarn.Fprintf(cmd.OutOrStdout(), "WARN %s: missing imports\n", r.path)
				default:
					colorOK.Fprintf(cmd.OutOrStdout(), "OK   %s\n", r.path)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d loaded cleanly\n", len(results)-failures, len(results))
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed to load", failures, len(results))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&concurrency, "concurrency", 4, "maximum number of files loaded at once")
	cmd.Flags().BoolVar(&strict, "strict", true, "reject files that aren't 32-bit little-endian ARM relocatable objects")
	return cmd
}

func findObjectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".elf", ".fap":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func verifyAll(ctx context.Context, files []string, opts *rootOptions, strict bool, concurrency int64) []verifyResult {
	sem := semaphore.NewWeighted(concurrency)
	results := make([]verifyResult, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = verifyResult{path: path, err: err}
			continue
		}
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer sem.Release(1)

			status, img, err := loadOneFile(path, opts, strict)
			if img != nil {
				defer img.Close()
			}
			results[i] = verifyResult{path: path, status: status, err: err}
		}(i, path)
	}
	wg.Wait()

	return results
}
