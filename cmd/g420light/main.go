// Copyright 2020 420integrated
// This file is part of the go-420light library.
//
// The go-420light library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-420light library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-420light library. If not, see <http://www.gnu.org/licenses/>.

// Command g420light runs a standalone FlyClient-style super-light client
// process: it owns a peer registry and a persisted ProveState store, and
// periodically sweeps peers whose last update has gone stale, the way a
// trimmed-down cmd/g420 would if it only ever spoke the light_client
// sampling protocol and never synced a chain.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/420integrated/go-420light/config"
	"github.com/420integrated/go-420light/lightclient"
	"github.com/420integrated/go-420light/log"
	"github.com/420integrated/go-420light/store"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	trustedHashFlag = cli.StringFlag{
		Name:  "trusted-hash",
		Usage: "0x-prefixed hash of the pinned trust anchor (defaults to genesis)",
	}
	trustedNumberFlag = cli.Uint64Flag{
		Name:  "trusted-number",
		Usage: "block number of the pinned trust anchor",
	}
)

func main() {
	log.UseTerminalOutput()

	app := cli.NewApp()
	app.Name = "g420light"
	app.Usage = "super-light FlyClient for go-420coin"
	app.Commands = []cli.Command{
		runCommand,
		resetCommand,
		versionCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "print version information",
	Action: func(ctx *cli.Context) error {
		fmt.Println("g420light")
		return nil
	},
}

var resetCommand = cli.Command{
	Name:      "reset",
	Usage:     "wipe the persisted store after confirming a long fork",
	ArgsUsage: "<store-dir>",
	Action: func(ctx *cli.Context) error {
		dir := ctx.Args().First()
		if dir == "" {
			return fmt.Errorf("reset: missing <store-dir>")
		}
		fmt.Printf("this will permanently erase %s. type yes to continue: ", dir)
		var answer string
		fmt.Scanln(&answer)
		if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			return fmt.Errorf("reset: aborted")
		}
		s, err := store.Open(dir)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Reset()
	},
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "start the light client process",
	Flags: []cli.Flag{configFileFlag, trustedHashFlag, trustedNumberFlag},
	Action: func(ctx *cli.Context) error {
		cfg := config.Default()
		if path := ctx.String(configFileFlag.Name); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("run: loading config: %w", err)
			}
			cfg = loaded
		}
		if h := ctx.String(trustedHashFlag.Name); h != "" {
			cfg.TrustAnchor.Hash = h
		}
		if n := ctx.Uint64(trustedNumberFlag.Name); n != 0 {
			cfg.TrustAnchor.Number = n
		}
		return run(cfg)
	},
}

func parseTrustAnchor(cfg config.TrustAnchor) (lightclient.TrustAnchor, error) {
	var anchor lightclient.TrustAnchor
	anchor.Number = cfg.Number
	if cfg.Hash == "" {
		return anchor, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(cfg.Hash, "0x"))
	if err != nil {
		return anchor, fmt.Errorf("invalid trusted-hash: %w", err)
	}
	if len(raw) != len(anchor.Hash) {
		return anchor, fmt.Errorf("invalid trusted-hash: want %d bytes, got %d", len(anchor.Hash), len(raw))
	}
	copy(anchor.Hash[:], raw)
	return anchor, nil
}

func run(cfg config.Config) error {
	logger := log.New("module", "g420light")

	anchor, err := parseTrustAnchor(cfg.TrustAnchor)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StoreDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if _, ok, err := st.ReadTrustAnchor(); err == nil && !ok {
		if err := st.WriteTrustAnchor(anchor); err != nil {
			return fmt.Errorf("writing trust anchor: %w", err)
		}
	}

	peers := lightclient.NewPeers()
	lc := lightclient.NewLightClient(lightclient.Config{
		Tau:               cfg.Tau,
		LastNBlocks:       cfg.LastNBlocks,
		MMRActivatedEpoch: cfg.MMRActivatedEpoch,
		SampleCount:       cfg.SampleCount,
		TrustAnchor:       anchor,
	}, peers, st)

	logger.Info("g420light starting", "chain", cfg.Chain, "store", cfg.StoreDir, "tau", cfg.Tau)

	stop := make(chan struct{})
	go sweep(lc.Peers(), cfg.RefreshInterval, logger, stop)
	defer close(stop)

	// Transport (P2P discovery, the light_client wire protocol) is an
	// external collaborator; this process owns the registry and store but
	// has nothing further to block on here.
	select {}
}

// sweep periodically logs peers whose update_timestamp has gone stale.
// It only logs: P2P disconnection belongs to the transport, not this
// process.
func sweep(peers *lightclient.Peers, interval time.Duration, logger *log.Logger, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stale := peers.Stale(interval)
			for _, id := range stale {
				logger.Warn("peer stale, requires refresh", "peer", id)
			}
		}
	}
}
