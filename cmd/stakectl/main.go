package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/studystake/coordinator/internal/app"
	"github.com/studystake/coordinator/internal/config"
	"github.com/studystake/coordinator/internal/logger"
	"github.com/studystake/coordinator/internal/signer"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stakectl",
		Short:         "Operator tool for the commitment staking coordinator",
		Long:          `Run attestation sweeps, expire overdue commitments, settle pending transactions and verify attestation signatures.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with secrets")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	root.AddCommand(migrateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(expireCmd())
	root.AddCommand(confirmCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(signerAddressCmd())
	return root
}

// loadConfig falls back to defaults unless --config was given explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.DefaultConfig()
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp opens the coordinator's dependencies for one command
func withApp(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Configuration{Level: logLevel, Console: true})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				version, dirty, err := a.DB.MigrationVersion(a.Config.Database.Migrations)
				if err != nil {
					return err
				}
				fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Attest progress for every active commitment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				results, err := a.Orchestrator.SweepActiveCommitments(ctx)
				if err != nil {
					return err
				}

				failed := 0
				fmt.Printf("%-12s %-8s %-9s %-9s %s\n", "COMMITMENT", "ATTESTED", "PROGRESS", "ATTEMPTS", "ERROR")
				for _, r := range results {
					if !r.Success {
						failed++
					}
					fmt.Printf("%-12d %-8t %-9d %-9d %s\n", r.CommitmentID, r.Attested, r.Progress, r.Attempts, r.Error)
				}
				fmt.Printf("\n%d processed, %d failed\n", len(results), failed)
				return nil
			})
		},
	}
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Fail active commitments whose deadline passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				results, err := a.Lifecycle.ExpireOverdue(ctx)
				if err != nil {
					return err
				}
				return printJSON(results)
			})
		},
	}
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Settle pending transactions from chain receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				res, err := a.Lifecycle.ConfirmPending(ctx, a.Chain, limit)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().Int("limit", 100, "maximum transactions to check")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recover the signer of an attestation signature",
		Long:  `Recover the address that signed an attestation tuple and compare it to the expected signer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("commitment")
			address, _ := cmd.Flags().GetString("address")
			progress, _ := cmd.Flags().GetInt64("progress")
			hash, _ := cmd.Flags().GetString("hash")
			signature, _ := cmd.Flags().GetString("signature")
			expected, _ := cmd.Flags().GetString("expect")

			recovered, err := signer.Recover(id, address, progress, hash, signature)
			if err != nil {
				return err
			}
			fmt.Printf("Recovered signer: %s\n", recovered)

			if expected == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				s, err := signer.New(cfg.Web3.PrivateKey)
				if err != nil {
					return err
				}
				expected = s.Address()
			}
			if expected == "" {
				return nil
			}
			if !strings.EqualFold(recovered, expected) {
				return fmt.Errorf("signature was not produced by %s", expected)
			}
			fmt.Println("Signature valid")
			return nil
		},
	}

	cmd.Flags().Int64("commitment", 0, "commitment id")
	cmd.Flags().String("address", "", "user wallet address")
	cmd.Flags().Int64("progress", 0, "attested progress")
	cmd.Flags().String("hash", "", "attestation hash (0x-prefixed bytes32)")
	cmd.Flags().String("signature", "", "65 byte signature (0x-prefixed)")
	cmd.Flags().String("expect", "", "expected signer address (defaults to the configured key)")
	for _, f := range []string{"commitment", "address", "hash", "signature"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func signerAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signer-address",
		Short: "Print the address of the configured attestation key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := signer.New(cfg.Web3.PrivateKey)
			if err != nil {
				return err
			}
			if !s.Configured() {
				return signer.ErrNotConfigured
			}
			fmt.Println(s.Address())
			return nil
		},
	}
}
