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

// Package config loads the light client's on-disk TOML configuration the
// same way g420 loads a full node's: a toml.Config with strict, unrenamed
// field matching so a typo in the file surfaces as a load error instead
// of a silently-ignored field, covering this client's tunables (tau,
// last_n_blocks, mmr_activated_epoch, the trust anchor, and the
// peer-refresh probe interval).
package config

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// ChainName selects which network's genesis/trust-anchor defaults to use.
type ChainName string

const (
	Mainnet ChainName = "mainnet"
	Testnet ChainName = "testnet"
)

// TrustAnchor is the TOML-facing form of lightclient.TrustAnchor: a hex
// hash instead of a raw [32]byte, since that's what a config file and an
// operator typing `--trusted-hash` both carry.
type TrustAnchor struct {
	Number uint64 `toml:",omitempty"`
	Hash   string `toml:",omitempty"` // 0x-prefixed hex, empty means "genesis"
}

// Config is the full on-disk shape of a g420light deployment.
type Config struct {
	Chain             ChainName
	StoreDir          string
	Tau               uint64
	LastNBlocks       uint64
	MMRActivatedEpoch uint64
	SampleCount       int
	TrustAnchor       TrustAnchor
	RefreshInterval   time.Duration
}

// Default returns the out-of-the-box tunables: tau=2 matches the host
// chain's consensus bound on per-epoch difficulty change, and the refresh
// interval is the horizon past which the sweeper flags a silent peer.
func Default() Config {
	return Config{
		Chain:             Mainnet,
		StoreDir:          "./g420light-data",
		Tau:               2,
		LastNBlocks:       100,
		MMRActivatedEpoch: 0,
		SampleCount:       16,
		RefreshInterval:   5 * time.Minute,
	}
}

// Load reads and decodes a TOML config file on top of Default()'s values:
// open, buffer, strict-decode, annotate line errors with the file name.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return cfg, fmt.Errorf("%s, %w", path, err)
		}
		return cfg, err
	}
	return cfg, nil
}
