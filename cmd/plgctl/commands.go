package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"plgshop/config"
	"plgshop/internal/app"
	"plgshop/pkg/database"
	"plgshop/pkg/ecpay"
	"plgshop/pkg/logger"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewMySQLConnection(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			applied, err := database.RunMigrations(ctx, db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep over expired payment claims",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewLoggerWithConfig(cfg.LogLevel, cfg.LogFile)
			defer log.Sync()

			db, err := database.NewMySQLConnection(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
			rdb, err := database.NewRedisClient(cfg.Redis)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report, err := app.New(cfg, log, db, rdb).Reconciler.Sweep(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall sweep timeout")
	return cmd
}

func signCmd() *cobra.Command {
	var (
		useMD5  bool
		hashKey string
		hashIV  string
	)
	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Compute the ECPay CheckMacValue for the given fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseFields(args)
			if err != nil {
				return err
			}
			if hashKey == "" || hashIV == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if hashKey == "" {
					hashKey = cfg.ECPay.HashKey
				}
				if hashIV == "" {
					hashIV = cfg.ECPay.HashIV
				}
			}

			method := ecpay.HashSHA256
			if useMD5 {
				method = ecpay.HashMD5
			}
			signer := ecpay.NewSigner(ecpay.Config{HashKey: hashKey, HashIV: hashIV})
			fmt.Fprintln(cmd.OutOrStdout(), signer.CheckMacValue(params, method))
			return nil
		},
	}
	cmd.Flags().BoolVar(&useMD5, "md5", false, "use MD5 (logistics) instead of SHA-256")
	cmd.Flags().StringVar(&hashKey, "hash-key", "", "HashKey, defaults to ECPAY_HASH_KEY")
	cmd.Flags().StringVar(&hashIV, "hash-iv", "", "HashIV, defaults to ECPAY_HASH_IV")
	return cmd
}

// parseFields 解析 key=value 参数，CheckMacValue 自身会被忽略
func parseFields(args []string) (ecpay.Params, error) {
	params := make(ecpay.Params, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", arg)
		}
		if k == ecpay.FieldCheckMacValue {
			continue
		}
		params[k] = v
	}
	return params, nil
}
