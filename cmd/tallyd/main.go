// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/epochtally/tally/api"
	"github.com/epochtally/tally/authority"
	"github.com/epochtally/tally/claimdb"
	"github.com/epochtally/tally/clock"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/distributor"
	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/lvldb"
	"github.com/epochtally/tally/metrics"
	"github.com/epochtally/tally/rewardfeed"
	"github.com/epochtally/tally/state"
	"github.com/epochtally/tally/tally"
)

var (
	version   string
	gitCommit string
	gitTag    string
	logger    = log.WithContext("pkg", "main")
)

// storage namespaces of the tally components
var (
	nsAuthority    = tally.BytesToAddress([]byte("tally-authority"))
	nsContribution = tally.BytesToAddress([]byte("tally-contribution"))
	nsRewardFeed   = tally.BytesToAddress([]byte("tally-rewardfeed"))
	nsDistributor  = tally.BytesToAddress([]byte("tally-distributor"))
	nsPool         = tally.BytesToAddress([]byte("tally-pool"))
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Tally",
		Usage:     "epoch contribution accounting and reward settlement daemon",
		Copyright: "2025 The Tally developers",
		Flags: []cli.Flag{
			dataDirFlag,
			configFlag,
			apiAddrFlag,
			apiCorsFlag,
			metricsAddrFlag,
			epochFlag,
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	if !ctx.IsSet(configFlag.Name) {
		return errors.New("--config is required")
	}
	config, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}

	dataDir := ctx.String(dataDirFlag.Name)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return errors.WithMessage(err, "create data dir")
	}

	mainDB, err := lvldb.New(filepath.Join(dataDir, "main.db"), lvldb.Options{})
	if err != nil {
		return errors.WithMessage(err, "open main database")
	}
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	claimDB, err := claimdb.New(filepath.Join(dataDir, "claims.db"))
	if err != nil {
		return errors.WithMessage(err, "open claim database")
	}
	defer func() { logger.Info("closing claim database..."); claimDB.Close() }()

	st := state.New(mainDB)
	clk := clock.NewManual(ctx.Uint64(epochFlag.Name))

	auth := authority.New(nsAuthority, st)
	feed := contribution.New(nsContribution, st, auth, clk)
	rewardFeed := rewardfeed.New(nsRewardFeed, st, auth, clk)
	pool := distributor.NewPool(nsPool, st)
	dist := distributor.New(nsDistributor, st, auth, clk, feed, pool, nil)

	if err := applyConfig(config, st, auth, dist); err != nil {
		return err
	}

	metricsOn := ctx.IsSet(metricsAddrFlag.Name)
	if metricsOn {
		metrics.InitializePrometheusMetrics()
		url, stop, err := startHTTPServer(ctx.String(metricsAddrFlag.Name), metrics.HTTPHandler())
		if err != nil {
			return errors.WithMessage(err, "start metrics server")
		}
		defer stop()
		logger.Info("metrics server started", "url", url)
	}

	handler := api.New(feed, rewardFeed, dist, claimDB, api.Options{
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
		EnableMetrics:  metricsOn,
	})
	apiURL, stopAPI, err := startHTTPServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return errors.WithMessage(err, "start API server")
	}
	defer func() { logger.Info("stopping API server..."); stopAPI() }()

	logger.Info("tallyd started",
		"version", fullVersion(), "dataDir", dataDir, "apiURL", apiURL,
		"epoch", clk.CurrentEpoch())

	<-handleExitSignal().Done()
	return nil
}

// applyConfig seeds the capability registry and distributor policy, then
// commits the seeded state. Re-applying on restart is harmless: grants
// are idempotent and policy values simply overwrite.
func applyConfig(config *Config, st *state.State, auth *authority.Authority, dist *distributor.Distributor) error {
	admin := tally.MustParseAddress(config.Admin)

	if err := auth.Initialize(admin); err != nil && err != authority.ErrAlreadyInitialized {
		return err
	}
	for _, feeder := range config.Feeders {
		if err := auth.Grant(admin, authority.RoleFeeder, tally.MustParseAddress(feeder)); err != nil {
			return err
		}
	}
	if config.Treasury != "" {
		if err := dist.SetTreasury(admin, tally.MustParseAddress(config.Treasury)); err != nil {
			return err
		}
	}
	if config.CapBps != nil {
		if err := dist.SetCapBps(admin, *config.CapBps); err != nil {
			return err
		}
	}
	if config.Claim != nil {
		if err := dist.SetClaimConfig(admin, distributor.ClaimConfig{
			MaxClaimEpochsPerCall: config.Claim.MaxClaimEpochsPerCall,
			MaxStakersPerBatch:    config.Claim.MaxStakersPerBatch,
		}); err != nil {
			return err
		}
	}
	return st.Commit()
}
