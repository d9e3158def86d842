package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/purgechain/config"
	"github.com/tolelom/purgechain/consensus"
	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/indexer"
	"github.com/tolelom/purgechain/internal/logger"
	"github.com/tolelom/purgechain/internal/metrics"
	"github.com/tolelom/purgechain/keeper"
	"github.com/tolelom/purgechain/oracle"
	"github.com/tolelom/purgechain/rpc"
	"github.com/tolelom/purgechain/storage"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/purgechain/vm/modules/affiliate"
	_ "github.com/tolelom/purgechain/vm/modules/asset"
	_ "github.com/tolelom/purgechain/vm/modules/economy"
	_ "github.com/tolelom/purgechain/vm/modules/market"
	_ "github.com/tolelom/purgechain/vm/modules/purge"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the node: block production, RPC, oracle and keeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	w, err := wallet.Open(cfg.KeyFile, password())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	if len(cfg.Validators) == 0 {
		cfg.Validators = []string{w.PubKey()}
		slog.Info("no validators configured, running as sole validator")
	}
	if cfg.Oracle.Enabled {
		if cfg.Game.OracleAddress == "" {
			cfg.Game.OracleAddress = w.PubKey()
		}
		if cfg.Game.OracleAddress != w.PubKey() {
			return fmt.Errorf("oracle enabled but game.oracle_address %s is not the node key", cfg.Game.OracleAddress)
		}
	}

	// ---- storage ----
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// State, blocks and indexes share one DB under different key prefixes.
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewLevelBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}
	if bc.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, w.PrivKey())
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		slog.Info("genesis block committed", "hash", genesis.Hash, "chain_id", cfg.Genesis.ChainID)
	}
	metrics.BlockHeight.Set(float64(bc.Height()))

	// ---- execution ----
	emitter := events.NewEmitter()
	metrics.NewEventMetricsCollector().Register(emitter)
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, emitter, &cfg.Game)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, w.PrivKey())

	if cfg.Oracle.Enabled {
		oracle.New(w, cfg.Genesis.ChainID, cfg.Oracle.Secret, state, mempool).Register(emitter)
		slog.Info("randomness oracle enabled", "address", w.PubKey())
	}

	// ---- RPC ----
	handler := rpc.NewHandler(rpc.Deps{
		Blockchain: bc,
		Mempool:    mempool,
		State:      state,
		Indexer:    idx,
		Executor:   exec,
		Params:     &cfg.Game,
		ChainID:    cfg.Genesis.ChainID,
		CacheTTL:   time.Duration(cfg.RPCCacheTTLMs) * time.Millisecond,
	})
	handler.WatchCommits(emitter)
	server := rpc.NewServer(fmt.Sprintf(":%d", cfg.RPCPort), handler, cfg.RPCAuthToken)
	if err := server.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			slog.Warn("rpc shutdown", "error", err)
		}
	}()
	if cfg.RPCAuthToken != "" {
		slog.Info("rpc bearer token authentication enabled")
	}

	// ---- loops ----
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	var runErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poa.Run(ctx, time.Duration(cfg.BlockIntervalMs)*time.Millisecond); err != nil {
			runErr = err
			cancel()
		}
	}()
	slog.Info("consensus running", "validator", w.PubKey(), "interval_ms", cfg.BlockIntervalMs)

	if cfg.Keeper.Enabled {
		k := keeper.New(w, cfg.Genesis.ChainID, cfg.Keeper.BudgetHint, bc, state, mempool, exec)
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Run(ctx, time.Duration(cfg.Keeper.IntervalMs)*time.Millisecond)
		}()
		slog.Info("keeper running", "interval_ms", cfg.Keeper.IntervalMs)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	// Stop block production before the deferred RPC stop and DB close.
	wg.Wait()
	if runErr != nil {
		return runErr
	}
	slog.Info("shutdown complete")
	return nil
}
