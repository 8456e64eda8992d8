package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/adminui"
	"github.com/moneykin1993/habit-app/internal/analytics"
	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/config"
	"github.com/moneykin1993/habit-app/internal/logging"
	"github.com/moneykin1993/habit-app/internal/relay"
)

const envRelayBackend = "GAS_BASE"

var (
	adminToken string
	adminGroup string
	adminPlain bool
	adminColor bool

	relayListen  string
	relayBackend string
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Show a group's weekly table",
		Args:  cobra.NoArgs,
		RunE:  runAdminCmd,
	}
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "admin access token (env "+envAdminToken+")")
	cmd.Flags().StringVar(&adminGroup, "group", "", "group name (default: first group)")
	cmd.Flags().BoolVar(&adminPlain, "plain", false, "print the table instead of opening the TUI")
	cmd.Flags().BoolVar(&adminColor, "color", false, "force colored output with --plain")
	return cmd
}

func runAdminCmd(cmd *cobra.Command, _ []string) error {
	token := strings.TrimSpace(adminToken)
	if !cmd.Flags().Changed("admin-token") {
		token = strings.TrimSpace(os.Getenv(envAdminToken))
	}

	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.close()

	groups := e.groups()
	group := strings.TrimSpace(adminGroup)
	if group == "" && len(groups) > 0 {
		group = groups[0]
	}

	if adminPlain {
		if token == "" {
			return errors.New(api.MsgNoPermission)
		}
		table, err := api.GroupTable(context.Background(), e.client, group, token)
		if err != nil {
			return userError(err, api.MsgNoPermission)
		}
		return analytics.RenderAdminTable(os.Stdout, table, analytics.ShouldUseColor(os.Stdout, adminColor))
	}

	model := adminui.NewModel(adminui.Options{
		Caller: e.client,
		Token:  token,
		Groups: groups,
		Group:  group,
		Log:    e.log,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve the same-origin relay to the backend",
		Args:  cobra.NoArgs,
		RunE:  runRelayCmd,
	}
	cmd.Flags().StringVar(&relayListen, "listen", config.DefaultListen, "listen address")
	cmd.Flags().StringVar(&relayBackend, "backend", "", "backend URL (env "+envRelayBackend+")")
	return cmd
}

func runRelayCmd(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "listen", &relayListen, fileCfg.Relay.Listen)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	backend := relayBackend
	if !cmd.Flags().Changed("backend") {
		if v := strings.TrimSpace(os.Getenv(envRelayBackend)); v != "" {
			backend = v
		} else {
			applyStringConfig(cmd, "backend", &backend, fileCfg.Relay.Backend)
		}
	}

	log, err := logging.New(logLevel, logging.FormatJSON, "stderr")
	if err != nil {
		return err
	}
	defer func() {
		if err := log.Sync(); err != nil {
			// Best-effort flush.
			_ = err
		}
	}()
	if strings.TrimSpace(backend) == "" {
		log.Warn("no backend configured; /api/gas will answer 502", zap.String("env", envRelayBackend))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	handler := relay.NewHandler(backend, nil, log)
	return relay.Serve(ctx, relayListen, handler.Routes(), log)
}
