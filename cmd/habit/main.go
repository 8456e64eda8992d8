// Package main provides the CLI entrypoint for habit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/catalog"
	"github.com/moneykin1993/habit-app/internal/config"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/logging"
	"github.com/moneykin1993/habit-app/internal/report"
	"github.com/moneykin1993/habit-app/internal/session"
	"github.com/moneykin1993/habit-app/internal/store"
	"github.com/moneykin1993/habit-app/internal/tui"
)

const (
	envEndpoint   = "HABIT_ENDPOINT"
	envAdminToken = "HABIT_ADMIN_TOKEN"
)

var (
	apiEndpoint string
	logLevel    string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "habit",
		Short:         "Daily study report client",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runReportCmd,
	}

	rootCmd.PersistentFlags().StringVar(&apiEndpoint, "endpoint", "", "backend endpoint (env "+envEndpoint+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newParentCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newRelayCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// env is what every client command needs: the parsed config file, a
// gateway client and a logger.
type env struct {
	cfg    config.FileConfig
	client *gateway.Client
	loc    *time.Location
	log    *zap.Logger
}

// loadEnv reads the config file and builds the gateway client. Logs go to
// logPath, or to the configured log file when logPath is empty.
func loadEnv(cmd *cobra.Command, logPath string) (*env, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	endpoint := apiEndpoint
	if !cmd.Flags().Changed("endpoint") {
		if v := strings.TrimSpace(os.Getenv(envEndpoint)); v != "" {
			endpoint = v
		} else {
			applyStringConfig(cmd, "endpoint", &endpoint, fileCfg.API.Endpoint)
		}
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)

	timeout, err := fileCfg.Timeout()
	if err != nil {
		return nil, err
	}
	loc, err := fileCfg.Location()
	if err != nil {
		return nil, err
	}

	if logPath == "" {
		logPath = config.DefaultLogPath()
		if fileCfg.Log.File != nil && *fileCfg.Log.File != "" {
			logPath = *fileCfg.Log.File
		}
	}
	log, err := logging.New(logLevel, logging.FormatConsole, logPath)
	if err != nil {
		return nil, err
	}

	client := gateway.New(endpoint, gateway.WithTimeout(timeout), gateway.WithLogger(log))
	return &env{cfg: fileCfg, client: client, loc: loc, log: log}, nil
}

func (e *env) groups() []string {
	prefix := ""
	if e.cfg.Groups.Prefix != nil {
		prefix = *e.cfg.Groups.Prefix
	}
	count := 0
	if e.cfg.Groups.Count != nil {
		count = *e.cfg.Groups.Count
	}
	return catalog.GroupOptions(prefix, count)
}

func (e *env) close() {
	if err := e.log.Sync(); err != nil {
		// Best-effort flush; stderr cannot always be synced.
		_ = err
	}
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Open the daily report screen (default)",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	return runStudentTUI(cmd, false)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Register this device with group, name and e-mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStudentTUI(cmd, true)
		},
	}
}

func runStudentTUI(cmd *cobra.Command, login bool) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.close()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	model := tui.NewModel(tui.Options{
		Resolver:   session.NewResolver(st, e.client, e.log),
		Caller:     e.client,
		Controller: report.NewController(e.client, report.WithJournal(st), report.WithLogger(e.log)),
		Groups:     e.groups(),
		Location:   e.loc,
		Log:        e.log,
		Login:      login,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the device token",
		Args:  cobra.NoArgs,
		RunE:  runLogoutCmd,
	}
}

func runLogoutCmd(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.close()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := session.NewResolver(st, e.client, e.log).Logout(context.Background()); err != nil {
		return err
	}
	logErrln("Signed out.")
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
