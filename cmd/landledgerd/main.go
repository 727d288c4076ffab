package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"landledger/archive"
	"landledger/audit"
	"landledger/cmd/internal/passphrase"
	"landledger/config"
	"landledger/core"
	"landledger/crypto"
	"landledger/observability/logging"
	"landledger/observability/otel"
	"landledger/rpc"
	"landledger/storage"
)

const (
	adminPassEnv        = "LAND_ADMIN_PASS"
	genesisPathEnv      = "LAND_GENESIS"
	allowAutogenesisEnv = "LAND_ALLOW_AUTOGENESIS"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides LAND_GENESIS and config GenesisFile)")
	allowAutogenesisFlag := flag.Bool("allow-autogenesis", false, "DEV ONLY: allow automatic genesis creation when no stored genesis exists")
	flag.Parse()

	allowAutogenesisCLISet := flagWasProvided("allow-autogenesis")

	env := strings.TrimSpace(os.Getenv("LAND_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.SetupWithFile("landledgerd", env, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	allowAutogenesis, err := resolveAllowAutogenesis(cfg.AllowAutogenesis, allowAutogenesisCLISet, *allowAutogenesisFlag, os.LookupEnv)
	if err != nil {
		logger.Error("Failed to resolve autogenesis setting", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath, err := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, allowAutogenesis, os.LookupEnv)
	if err != nil {
		logger.Error("Failed to resolve genesis path", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	passSource := passphrase.NewSource(adminPassEnv)
	adminKey, err := loadAdminKey(cfg, passSource.Get)
	if err != nil {
		panic(fmt.Sprintf("Failed to load admin key: %v", err))
	}
	var adminAddr [20]byte
	copy(adminAddr[:], adminKey.PubKey().Address().Bytes())

	node, err := core.NewNode(db, adminAddr, genesisPath, allowAutogenesis)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}
	if err := node.ConfigurePolicies(cfg.Pauses, cfg.Revenue, cfg.Quota); err != nil {
		panic(fmt.Sprintf("Failed to apply module policies: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.RPC.OTLPEndpoint); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "landledgerd",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.RPC.OTLPInsecure,
			Headers:     otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Traces:      true,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	eventArchive, err := archive.Open(archive.Config{
		Driver: cfg.Archive.Driver,
		DSN:    cfg.Archive.DSN,
	}, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to open event archive: %v", err))
	}
	defer eventArchive.Close()
	go func() {
		if err := eventArchive.Follow(ctx, node.Journal()); err != nil && ctx.Err() == nil {
			logger.Error("Event archive follower stopped", slog.Any("error", err))
		}
	}()

	auditPolicy, err := audit.LoadPolicy(cfg.Audit.PolicyFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load audit policy: %v", err))
	}
	auditor, err := audit.New(audit.Config{
		Ledger:    node,
		OutputDir: cfg.Audit.OutputDir,
		Policy:    auditPolicy,
		Logger:    logger,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create auditor: %v", err))
	}
	defer auditor.Close()
	scheduler := audit.NewScheduler(audit.SchedulerConfig{
		Auditor:   auditor,
		RunHour:   cfg.Audit.RunHour,
		RunMinute: cfg.Audit.RunMinute,
		Logger:    logger,
	})
	go scheduler.Start(ctx)

	rpcServer, err := rpc.NewServer(node, auditor, logger, rpc.ServerConfig{
		JWTSecret:         cfg.RPC.JWTSecret,
		RatePerSecond:     cfg.RPC.RatePerSecond,
		RateBurst:         cfg.RPC.RateBurst,
		MaxConns:          cfg.RPC.MaxConns,
		IdempotencyPath:   cfg.RPC.IdempotencyPath,
		TrustProxyHeaders: cfg.RPC.TrustProxyHeaders,
	})
	if err != nil {
		logger.Error("Failed to initialise RPC server", slog.Any("error", err))
		os.Exit(1)
	}
	rpcServer.AttachEventHistory(eventArchive)
	rpcErrCh := make(chan error, 1)
	go func() {
		err := rpcServer.Start(cfg.RPCAddress)
		rpcErrCh <- err
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("landledger node initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("admin", adminKey.PubKey().Address().String()),
		logging.MaskField("jwtSecret", cfg.RPC.JWTSecret))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-rpcErrCh:
		if ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("RPC shutdown failed", slog.Any("error", err))
	}
}

type envLookupFunc func(string) (string, bool)

func resolveGenesisPath(cliPath string, cfgPath string, allowAutogenesis bool, lookup envLookupFunc) (string, error) {
	trimmedCLI := strings.TrimSpace(cliPath)
	if trimmedCLI != "" {
		return trimmedCLI, nil
	}

	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			trimmedEnv := strings.TrimSpace(value)
			if trimmedEnv != "" {
				return trimmedEnv, nil
			}
		}
	}

	trimmedCfg := strings.TrimSpace(cfgPath)
	if trimmedCfg != "" {
		return trimmedCfg, nil
	}

	if allowAutogenesis {
		return "", nil
	}

	return "", fmt.Errorf("no genesis file provided; supply one via --genesis, %s, or config, or explicitly enable autogenesis (--allow-autogenesis / %s / config)", genesisPathEnv, allowAutogenesisEnv)
}

func resolveAllowAutogenesis(cfgValue bool, cliSet bool, cliValue bool, lookup envLookupFunc) (bool, error) {
	allow := cfgValue

	if lookup != nil {
		if value, ok := lookup(allowAutogenesisEnv); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				parsed, err := strconv.ParseBool(trimmed)
				if err != nil {
					return false, fmt.Errorf("invalid %s value %q: %w", allowAutogenesisEnv, trimmed, err)
				}
				allow = parsed
			}
		}
	}

	if cliSet {
		allow = cliValue
	}

	return allow, nil
}

func flagWasProvided(name string) bool {
	provided := false
	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func loadAdminKey(cfg *config.Config, resolvePassphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if cfg.AdminKeystore == "" {
		return nil, fmt.Errorf("admin keystore path not configured")
	}
	pass, err := resolvePassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain admin keystore passphrase: %w", err)
	}
	key, err := crypto.LoadFromKeystore(cfg.AdminKeystore, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", cfg.AdminKeystore, err)
	}
	return key, nil
}
