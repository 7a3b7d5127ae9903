package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/timelock-vault/cmd/flags"
	"github.com/ruteri/timelock-vault/common"
	"github.com/ruteri/timelock-vault/httpserver"
	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/ruteri/timelock-vault/ledger"
	"github.com/ruteri/timelock-vault/metrics"
	"github.com/ruteri/timelock-vault/storage"
	"github.com/ruteri/timelock-vault/vault"
	"github.com/urfave/cli/v2"
)

var (
	flagListenAddr = &cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	}
	flagStore = &cli.StringSliceFlag{
		Name:  "store",
		Value: cli.NewStringSlice("sqlite://vault.db"),
		Usage: "record store location URI; repeat to replicate records (memory://, file://, s3://, ipfs://, vault://, sqlite://, postgres://)",
	}
	flagLedger = &cli.StringFlag{
		Name:  "ledger",
		Value: "sqlite",
		Usage: "ledger backend: 'memory' or 'sqlite'",
	}
	flagLedgerDB = &cli.StringFlag{
		Name:  "ledger-db",
		Value: "vault.db",
		Usage: "SQLite database of the sqlite ledger; share it with a sqlite:// store for atomic record writes",
	}
)

type ledgers struct {
	token       interfaces.TokenLedger
	native      interfaces.Ledger
	transactors []interfaces.Transactor
	faucets     *httpserver.Faucets
}

func loadEnvironment(cCtx *cli.Context) (vault.Environment, error) {
	if path := cCtx.String(flags.EnvironmentFileFlag.Name); path != "" {
		return vault.LoadEnvironment(path)
	}
	return vault.EnvironmentByName(cCtx.String(flags.EnvironmentFlag.Name))
}

func setupLedgers(kind string, env *vault.Environment, sf *storage.StoreFactory, dbPath string, logger *slog.Logger) (*ledgers, error) {
	switch kind {
	case "memory":
		token := ledger.NewTokenLedger(env.TokenProgramID, logger)
		native := ledger.NewNativeLedger(env.NativeProgramID, logger)
		return &ledgers{
			token:       token,
			native:      native,
			transactors: []interfaces.Transactor{token, native},
			faucets:     &httpserver.Faucets{Native: native, Token: token},
		}, nil
	case "sqlite":
		d, err := sf.Database(dbPath)
		if err != nil {
			return nil, err
		}
		token := ledger.NewSQLiteTokenLedger(d, env.TokenProgramID, logger)
		native := ledger.NewSQLiteNativeLedger(d, env.NativeProgramID, logger)
		return &ledgers{
			token:       token,
			native:      native,
			transactors: []interfaces.Transactor{d},
			faucets:     &httpserver.Faucets{Native: native, Token: token},
		}, nil
	default:
		return nil, fmt.Errorf("invalid ledger backend: %s", kind)
	}
}

func main() {
	app := &cli.App{
		Name:  "vault-server",
		Usage: "Serve the time-locked token vault API",
		Flags: append(flags.CommonFlags[:len(flags.CommonFlags):len(flags.CommonFlags)],
			flagListenAddr,
			flagStore,
			flagLedger,
			flagLedgerDB,
			flags.EnvironmentFlag,
			flags.EnvironmentFileFlag,
		),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))
			ctx := context.Background()

			env, err := loadEnvironment(cCtx)
			if err != nil {
				logger.Error("Failed to load environment", "err", err)
				return err
			}
			logger.Info("Environment loaded",
				slog.String("name", env.Name),
				slog.String("program", env.ProgramID.String()),
				slog.Bool("faucet", env.Faucet))

			storeFactory := storage.NewStoreFactory(logger)
			defer storeFactory.Close()

			var locations []interfaces.StorageBackendLocation
			for _, uri := range cCtx.StringSlice(flagStore.Name) {
				location, err := interfaces.NewStorageBackendLocation(uri)
				if err != nil {
					logger.Error("Invalid store location", "err", err, slog.String("uri", uri))
					return err
				}
				locations = append(locations, location)
			}
			store, err := storeFactory.CreateMultiStore(ctx, locations)
			if err != nil {
				logger.Error("Failed to create record store", "err", err)
				return err
			}
			logger.Info("Record store ready", slog.String("store", store.Name()), slog.String("location", store.LocationURI()))

			l, err := setupLedgers(cCtx.String(flagLedger.Name), &env, storeFactory, cCtx.String(flagLedgerDB.Name), logger)
			if err != nil {
				logger.Error("Failed to set up ledgers", "err", err)
				return err
			}

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}

			processor, err := vault.NewProcessor(vault.ProcessorConfig{
				Env:         env,
				Store:       store,
				Token:       l.token,
				Native:      l.native,
				Log:         logger,
				Transactors: l.transactors,
				Observer:    metricsSrv.Recorder,
			})
			if err != nil {
				logger.Error("Failed to create processor", "err", err)
				return err
			}

			handler := httpserver.NewHandler(processor, l.faucets, nil, cfg.SignatureWindow, logger)
			server, err := httpserver.New(cfg, handler, metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
