// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/epochtally/tally/tally"
)

// Config is the host config loaded from the --config YAML file.
type Config struct {
	Admin    string   `yaml:"admin"`
	Treasury string   `yaml:"treasury"`
	Feeders  []string `yaml:"feeders"`
	CapBps   *uint32  `yaml:"capBps"`
	Claim    *struct {
		MaxClaimEpochsPerCall uint64 `yaml:"maxClaimEpochsPerCall"`
		MaxStakersPerBatch    uint64 `yaml:"maxStakersPerBatch"`
	} `yaml:"claim"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read config")
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.WithMessage(err, "parse config")
	}
	if config.Admin == "" {
		return nil, errors.New("config: admin address required")
	}
	if _, err := tally.ParseAddress(config.Admin); err != nil {
		return nil, errors.WithMessage(err, "config: admin")
	}
	if config.Treasury != "" {
		if _, err := tally.ParseAddress(config.Treasury); err != nil {
			return nil, errors.WithMessage(err, "config: treasury")
		}
	}
	for _, feeder := range config.Feeders {
		if _, err := tally.ParseAddress(feeder); err != nil {
			return nil, errors.WithMessage(err, "config: feeder")
		}
	}
	return &config, nil
}
