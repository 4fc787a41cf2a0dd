package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keydrop/config"
	"keydrop/core/state"
	"keydrop/core/types"
	"keydrop/host"
	"keydrop/native/airdrop"
	"keydrop/observability"
	"keydrop/observability/logging"
	"keydrop/rpc"
	"keydrop/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("KEYDROP_ENV"))
	logger := logging.Setup("keydropd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	contractAccount := types.AccountID(cfg.ContractAccount)
	hostEnv := host.NewEnv(contractAccount, manager)
	if err := ensureContractAccount(hostEnv, cfg); err != nil {
		logger.Error("failed to initialise contract account", slog.Any("error", err))
		os.Exit(1)
	}

	engine := airdrop.NewEngine()
	engine.SetState(manager)
	engine.SetRuntime(hostEnv)
	engine.SetPauses(cfg.Pauses())
	engine.SetEmitter(observability.MetricsEmitter{})

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		logger.Info("serving metrics", slog.String("addr", addr))
	}

	logger.Info("keydrop module ready",
		slog.String("contract", cfg.ContractAccount),
		slog.String("network", cfg.NetworkName))

	server := rpc.NewServer(engine, hostEnv, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func ensureContractAccount(hostEnv *host.Env, cfg *config.Config) error {
	exists, err := hostEnv.HasAccount(hostEnv.Self())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	balance, ok := cfg.ParseGenesisBalance()
	if !ok {
		return fmt.Errorf("invalid genesis balance %q", cfg.GenesisBalance)
	}
	if err := hostEnv.InitAccount(hostEnv.Self(), balance); err != nil && !errors.Is(err, host.ErrAccountExists) {
		return err
	}
	return nil
}
