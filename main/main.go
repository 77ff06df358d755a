// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/rpc/v2"

	log "github.com/inconshreveable/log15"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/verinode/coordvm/coordvm"
)

func main() {
	params, err := getParams()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if params.Version {
		fmt.Printf("%s@%s\n", coordvm.Name, coordvm.Version)
		os.Exit(0)
	}

	if err := run(params); err != nil {
		log.Error("daemon exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(params Params) error {
	db, err := openDB(params.DBDir)
	if err != nil {
		return fmt.Errorf("couldn't open database: %w", err)
	}

	coordinator, err := coordvm.New(db)
	if err != nil {
		return fmt.Errorf("couldn't create coordinator: %w", err)
	}
	defer func() {
		if err := coordinator.Shutdown(); err != nil {
			log.Error("error during shutdown", "error", err)
		}
	}()

	if params.Authority != "" {
		if err := initialize(coordinator, params); err != nil {
			return err
		}
	}

	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	if err := server.RegisterService(&coordvm.Service{Coordinator: coordinator}, coordvm.Name); err != nil {
		return fmt.Errorf("couldn't register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ext/coordvm", server)

	httpServer := &http.Server{Addr: params.ListenAddr, Handler: mux}
	errs := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", params.ListenAddr)
		errs <- httpServer.ListenAndServe()
	}()

	stopSweeper := make(chan struct{})
	if params.SweepInterval > 0 {
		go sweep(coordinator, params.SweepInterval, stopSweeper)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info("shutting down", "signal", sig)
		close(stopSweeper)
		return httpServer.Close()
	case err := <-errs:
		close(stopSweeper)
		return err
	}
}

func openDB(dbDir string) (database.Database, error) {
	if dbDir == "memory" {
		return memdb.New(), nil
	}
	return leveldb.New(dbDir, nil, logging.NoLog{})
}

func initialize(coordinator *coordvm.Coordinator, params Params) error {
	authority, err := ids.ShortFromString(params.Authority)
	if err != nil {
		return fmt.Errorf("couldn't parse authority: %w", err)
	}

	var configBytes []byte
	if params.ConfigFile != "" {
		configBytes, err = os.ReadFile(params.ConfigFile)
		if err != nil {
			return fmt.Errorf("couldn't read config file: %w", err)
		}
	}

	switch err := coordinator.Initialize(authority, configBytes); {
	case err == nil:
		log.Info("initialized", "authority", authority)
	case coordvm.IsAlreadyInitialized(err):
		// restart against an existing database; a config file still
		// applies, replacing the persisted policy
		if len(configBytes) > 0 {
			if err := coordinator.SetConfig(configBytes); err != nil {
				return fmt.Errorf("couldn't apply config: %w", err)
			}
		}
		log.Info("restarted", "authority", authority)
	default:
		return fmt.Errorf("couldn't initialize coordinator: %w", err)
	}
	return nil
}

// sweep periodically expires timed-out swaps and messages so funds and
// queue slots aren't stuck waiting for a client to ask.
func sweep(coordinator *coordvm.Coordinator, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if expired, err := coordinator.ExpireSwaps(); err != nil {
				log.Error("swap sweep failed", "error", err)
			} else if len(expired) > 0 {
				log.Info("expired swaps", "count", len(expired))
			}
			if expired, err := coordinator.ExpireMessages(); err != nil {
				log.Error("message sweep failed", "error", err)
			} else if len(expired) > 0 {
				log.Info("expired messages", "count", len(expired))
			}
		case <-stop:
			return
		}
	}
}
