// Package app wires configuration into the coordinator's services.
package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/config"
	"github.com/studystake/coordinator/internal/metrics"
	"github.com/studystake/coordinator/internal/scheduler"
	"github.com/studystake/coordinator/internal/services"
	"github.com/studystake/coordinator/internal/signer"
	"github.com/studystake/coordinator/internal/storage"
	"go.uber.org/zap"
)

// App holds the wired services and the resources behind them
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	DB     *storage.DB
	Chain  *chain.Client
	Signer *signer.Signer

	Accounts     *services.AccountService
	Lifecycle    *services.Lifecycle
	Orchestrator *services.Orchestrator
}

// Open connects to Postgres and the chain and builds the services
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*App, error) {
	db, err := storage.New(ctx, cfg.Database.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate {
		if err := db.Migrate(cfg.Database.Migrations); err != nil {
			db.Close()
			return nil, err
		}
	}

	client, err := chain.Dial(ctx, cfg.Web3.RPCURL, cfg.Web3.Timeout())
	if err != nil {
		db.Close()
		return nil, err
	}
	if client.Enabled() {
		if id, err := client.ChainID(ctx); err != nil {
			logger.Warn("chain id check failed", zap.Error(err))
		} else if id != cfg.Web3.ChainID {
			logger.Warn("rpc chain id differs from configuration",
				zap.Int64("rpc", id),
				zap.Int64("configured", cfg.Web3.ChainID))
		}
	} else {
		logger.Info("chain client disabled, balances and receipts unavailable")
	}

	s, err := signer.New(cfg.Web3.PrivateKey)
	if err != nil {
		client.Close()
		db.Close()
		return nil, fmt.Errorf("failed to load attestation key: %w", err)
	}
	if s.Configured() {
		logger.Info("attestation signer loaded", zap.String("address", s.Address()))
	} else {
		logger.Warn("attestation signer not configured, attestations will fail")
	}

	a := Build(cfg, logger, storage.NewPgLedger(db), storage.NewPgActivity(db), client, s)
	a.DB = db
	return a, nil
}

// Build wires services over the given ledger and activity source
func Build(cfg *config.Config, logger *zap.Logger, ledger storage.Ledger, activity storage.ActivitySource, client *chain.Client, s *signer.Signer) *App {
	m := metrics.New()
	calc := services.NewCalculator(activity, nil)
	life := services.NewLifecycle(ledger, calc, logger.Named("lifecycle"), services.LifecycleOptions{
		RewardMultiplier: decimal.NewFromFloat(cfg.Staking.RewardMultiplier),
		PodDurationDays:  cfg.Staking.DefaultPodDuration,
		Recorder:         m,
	})
	orch := services.NewOrchestrator(ledger, calc, s, life, logger.Named("attestation"), services.OrchestratorOptions{
		ProofLimit:   cfg.Staking.ProofLimit,
		Timeout:      cfg.Staking.Timeout(),
		Workers:      cfg.Scheduler.SweepWorkers,
		MaxRetries:   cfg.Scheduler.MaxRetries,
		RetryBackoff: cfg.Scheduler.RetryBackoff(),
		Recorder:     m,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		Chain:        client,
		Signer:       s,
		Accounts:     services.NewAccountService(ledger, client, logger.Named("accounts")),
		Lifecycle:    life,
		Orchestrator: orch,
	}
}

// Scheduler registers the periodic jobs
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sc := scheduler.New(a.Logger.Named("scheduler"), a.Metrics)
	cfg := a.Config.Scheduler
	jobs := []scheduler.Job{
		scheduler.SweepJob(cfg.SweepSpec, a.Orchestrator),
		scheduler.ExpireJob(cfg.ExpireSpec, a.Lifecycle),
		scheduler.ConfirmJob(cfg.ConfirmSpec, a.Lifecycle, a.Chain, cfg.ConfirmBatch),
	}
	for _, job := range jobs {
		if err := sc.Add(job); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// Close releases the chain and database connections
func (a *App) Close() {
	a.Chain.Close()
	if a.DB != nil {
		a.DB.Close()
	}
}
