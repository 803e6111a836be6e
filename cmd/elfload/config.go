// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// config is the CLI's on-disk configuration: the host symbol table this
// loader resolves undefined references against, and the cooperative
// scheduling pace the relocation engine uses.
type config struct {
	YieldInterval int               `mapstructure:"yield_interval" default:"30"`
	Symbols       map[string]uint32 `mapstructure:"symbols"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if path == "" {
		return cfg, nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
	}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
