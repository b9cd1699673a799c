package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"socialtree/config"
	"socialtree/core"
	"socialtree/crypto"
	"socialtree/observability/logging"
	"socialtree/observability/otel"
	"socialtree/rpc"
	"socialtree/storage"
)

const keystorePassEnv = "STT_KEYSTORE_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STT_ENV"))
	logger := logging.Setup("socialtreed", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ownerKey, err := loadOwnerKey(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to load owner key: %v", err))
	}
	ownerAddr := ownerKey.PubKey().Address()

	params, err := cfg.CommissionParams()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse commission params: %v", err))
	}
	genesisAllocs, err := cfg.GenesisAccounts()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse genesis allocations: %v", err))
	}
	allocs := make([]core.GenesisAccount, 0, len(genesisAllocs))
	for _, alloc := range genesisAllocs {
		allocs = append(allocs, core.GenesisAccount{Address: alloc.Address, Balance: alloc.Balance})
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, params, ownerAddr.Bytes20(), allocs)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry != nil {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "socialtreed",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	rpcServer := rpc.NewServer(node)
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.RPCAddress)
	}()

	logger.Info("node initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("owner", ownerAddr.String()),
		slog.String("rpc", cfg.RPCAddress))

	select {
	case err := <-rpcErrCh:
		if err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}

func loadOwnerKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	if cfg.OwnerKeystorePath == "" {
		return nil, fmt.Errorf("owner keystore path not configured")
	}
	passphrase := os.Getenv(keystorePassEnv)
	key, err := crypto.LoadFromKeystore(cfg.OwnerKeystorePath, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", cfg.OwnerKeystorePath, err)
	}
	return key, nil
}
