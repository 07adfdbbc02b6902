package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aidline/dispatch/config"
	"github.com/aidline/dispatch/core/dispatch"
	"github.com/aidline/dispatch/infra/logger"
	"github.com/aidline/dispatch/infra/oracle"
	"github.com/aidline/dispatch/infra/store"
)

var initiateOwner string

var initiateCmd = &cobra.Command{
	Use:   "initiate <request-id>",
	Short: "Run the ranking flow for an open request directly against the store",
	Args:  cobra.ExactArgs(1),
	RunE:  initiateRequest,
}

func init() {
	initiateCmd.Flags().StringVar(&initiateOwner, "owner", "", "owner user ID (acts as the caller)")
	_ = initiateCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(initiateCmd)
}

func initiateRequest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("initiate-command")
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("sqlite store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logg.Errorf("store close: %v", err)
		}
	}()

	client, err := oracle.NewClient(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("oracle client: %w", err)
	}
	engine, err := dispatch.NewEngine(st, client, nil, nil, logg, cfg.Dispatch)
	if err != nil {
		return fmt.Errorf("dispatch engine: %w", err)
	}

	res, err := engine.InitiateRanking(ctx, initiateOwner, args[0])
	if err != nil {
		return fmt.Errorf("initiate %s: %w", args[0], err)
	}
	req, err := st.GetRequest(ctx, args[0])
	if err != nil {
		return fmt.Errorf("read back %s: %w", args[0], err)
	}
	logg.Infof("request %s: status=%s ranked=%d current=%s", req.ID, req.Status, res.RankedCount, req.CurrentVolunteerID)
	return nil
}
