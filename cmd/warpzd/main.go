// Command warpzd runs the warpz synchronizer as a standalone daemon,
// driving the BlockSource -> TrialDecryptor -> WitnessEngine -> Store
// pipeline against a single configured lightwalletd-style server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ccoin/warpz/internal/chainsource"
	"github.com/ccoin/warpz/internal/config"
	"github.com/ccoin/warpz/internal/decrypt"
	"github.com/ccoin/warpz/internal/logging"
	"github.com/ccoin/warpz/internal/nullifier"
	"github.com/ccoin/warpz/internal/rpc"
	"github.com/ccoin/warpz/internal/storage"
	"github.com/ccoin/warpz/internal/sync"
	"github.com/ccoin/warpz/internal/witness"
	"github.com/ccoin/warpz/pkg/types"
)

const (
	version = "0.1.0"
	banner  = `
 __      __
/  \    /  \ _____   _______ ________
\   \/\/   //  _ \ \/  /  _ \\___   /
 \        (  <_> >    (  <_> )  / /
  \__/\  / \____/__/\_ \____/  /_/
       \/             \/
  warpz synchronizer v%s
`
)

func main() {
	cfg, dbCfg := parseFlags()
	fmt.Printf(banner, version)

	log := logging.New("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, dbCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (*config.Config, *storage.Config) {
	cfg := config.Config{}
	dbCfg := storage.DefaultConfig()

	var servers string
	flag.StringVar(&servers, "servers", "127.0.0.1:9067", "comma-separated lightwalletd server addresses")
	flag.StringVar(&cfg.DBPath, "db-path", "./warpz.db.enc", "encrypted wallet database path")
	flag.StringVar(&cfg.WarpURL, "warp-url", "", "warp-sync bridge data source URL (empty disables warp sync)")
	var warpEnd uint
	flag.UintVar(&warpEnd, "warp-end-height", 0, "warp-sync target height")
	var confirmations uint
	flag.UintVar(&confirmations, "confirmations", 10, "minimum confirmations for spendability")
	flag.BoolVar(&cfg.Regtest, "regtest", false, "run against a regtest lightwalletd instance")

	flag.StringVar(&dbCfg.Host, "db-host", dbCfg.Host, "PostgreSQL host")
	flag.IntVar(&dbCfg.Port, "db-port", dbCfg.Port, "PostgreSQL port")
	flag.StringVar(&dbCfg.User, "db-user", dbCfg.User, "PostgreSQL user")
	flag.StringVar(&dbCfg.Password, "db-password", dbCfg.Password, "PostgreSQL password")
	flag.StringVar(&dbCfg.Database, "db-name", dbCfg.Database, "PostgreSQL database name")

	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logging.SetLevel(lvl)
	}

	cfg.Servers = splitNonEmpty(servers)
	cfg.WarpEndHeight = uint32(warpEnd)
	cfg.Confirmations = uint32(confirmations)

	return &cfg, dbCfg
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func run(ctx context.Context, cfg *config.Config, dbCfg *storage.Config) error {
	log := logging.New("main")

	if err := config.Configure(*cfg); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("at least one --servers entry is required")
	}

	log.Info("connecting to wallet database")
	store, err := storage.NewPostgresStore(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx, 1, 0); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	log.Info("schema up to date")

	log.WithField("target", cfg.Servers[0]).Info("dialing chain source")
	client, err := rpc.NewClient(ctx, cfg.Servers[0])
	if err != nil {
		return fmt.Errorf("dial chain source: %w", err)
	}
	defer client.Close()

	source := chainsource.NewBlockSource(client, nil)

	nullifiers := nullifier.NewSet(store)

	witnessEngine := witness.NewEngine(
		store.TreeStoreFor(types.PoolSapling),
		store.TreeStoreFor(types.PoolOrchard),
		store,
		cfg.Confirmations,
	)
	if err := witnessEngine.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize witness engine: %w", err)
	}

	decryptor := decrypt.NewDecryptor(nil, nil)

	synchronizer := sync.New(source, decryptor, witnessEngine, nullifiers, store, nil)

	log.Info("warpz daemon ready, starting sync loop")
	if err := synchronizer.Run(ctx, uint64(cfg.WarpEndHeight)); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sync: %w", err)
	}

	log.Info("sync loop stopped")
	return nil
}
