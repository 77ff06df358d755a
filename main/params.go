// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey       = "version"
	listenAddrKey    = "listen-addr"
	dbDirKey         = "db-dir"
	configFileKey    = "config-file"
	authorityKey     = "authority"
	sweepIntervalKey = "sweep-interval"
)

// Params holds the daemon's startup configuration.
type Params struct {
	// If true, print the version and quit
	Version bool
	// Address the JSON-RPC server listens on
	ListenAddr string
	// Directory the coordinator database lives in. "memory" keeps
	// everything in RAM
	DBDir string
	// Optional JSON policy config applied at first start
	ConfigFile string
	// Optional authority address. When set and the database is fresh,
	// the coordinator is initialized with it
	Authority string
	// How often the expiry sweeps run. Zero disables the sweeper
	SweepInterval time.Duration
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("coordvm", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quits")
	fs.String(listenAddrKey, ":9750", "Address the JSON-RPC server listens on")
	fs.String(dbDirKey, "coordvm-db", "Directory the coordinator database lives in, or \"memory\"")
	fs.String(configFileKey, "", "Path to a JSON policy config applied at first start")
	fs.String(authorityKey, "", "Authority address used to initialize a fresh database")
	fs.Duration(sweepIntervalKey, time.Minute, "Interval between expiry sweeps, 0 to disable")

	return fs
}

// getViper returns the viper environment for the daemon
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

func getParams() (Params, error) {
	v, err := getViper()
	if err != nil {
		return Params{}, err
	}

	return Params{
		Version:       v.GetBool(versionKey),
		ListenAddr:    v.GetString(listenAddrKey),
		DBDir:         v.GetString(dbDirKey),
		ConfigFile:    v.GetString(configFileKey),
		Authority:     v.GetString(authorityKey),
		SweepInterval: v.GetDuration(sweepIntervalKey),
	}, nil
}
