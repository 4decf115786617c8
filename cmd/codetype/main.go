// Package main provides the CLI entrypoint for codetype.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/codetype/internal/config"
	"github.com/verte-zerg/codetype/internal/library"
	"github.com/verte-zerg/codetype/internal/logging"
	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/store"
	"github.com/verte-zerg/codetype/internal/tui"
)

const (
	defaultContentWidth = 0.70
	defaultCurveWindow  = 10
	defaultExportPath   = "codetype-history.xlsx"
)

var (
	practiceRepo         string
	practiceFile         string
	practiceContentWidth float64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "codetype",
		Short:         "Practice typing on real source code",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.Flags().StringVar(&practiceRepo, "repo", "", "repository name or id (default: most recently typed)")
	rootCmd.Flags().StringVar(&practiceFile, "file", "", "open this file path right away")
	rootCmd.Flags().Float64Var(&practiceContentWidth, "content-width", defaultContentWidth, "share of the terminal used for code (0-1)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newReposCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())

	return rootCmd
}

// env is what every command needs: the file config and an open store.
type env struct {
	cfg   config.FileConfig
	store *store.Store
}

func (e *env) close() {
	if cerr := e.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
	if cerr := logging.Close(); cerr != nil {
		// Best-effort close of the log file.
		_ = cerr
	}
}

func openEnv() (*env, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	paths := config.ResolvePaths(fileCfg)
	if err := logging.Init(paths.Log); err != nil {
		logErrf("logging disabled: %v\n", err)
	}
	if err := os.MkdirAll(filepath.Dir(paths.DB), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(paths.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return &env{cfg: fileCfg, store: st}, nil
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	applyStringConfig(cmd, "repo", &practiceRepo, e.cfg.Practice.Repository)
	applyFloatConfig(cmd, "content-width", &practiceContentWidth, e.cfg.Practice.ContentWidth)
	cfg := model.Config{
		Repository:   practiceRepo,
		Path:         practiceFile,
		ContentWidth: practiceContentWidth,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	repo, err := resolveRepository(ctx, e.store, cfg.Repository)
	if err != nil {
		return err
	}
	logging.Info("practicing repository %d (%s)", repo.ID, repo.Name)

	svc := library.New(e.store, repo)
	m := tui.NewModel(cfg, repo, svc)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// resolveRepository finds ref, or the most recently typed repository when
// ref is empty.
func resolveRepository(ctx context.Context, st *store.Store, ref string) (model.Repository, error) {
	if ref != "" {
		repo, err := st.FindRepository(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			logErrln("Run: codetype repos")
		}
		return repo, err
	}
	repos, err := st.ListRepositories(ctx)
	if err != nil {
		return model.Repository{}, fmt.Errorf("failed to list repositories: %w", err)
	}
	if len(repos) == 0 {
		logErrln("Import one with: codetype import <dir>")
		return model.Repository{}, fmt.Errorf("no repositories imported yet")
	}
	return st.GetRepository(ctx, repos[0].ID)
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
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
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

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# codetype configuration
# Uncomment a value to enable it. CLI flags override config values.
# CODETYPE_DB and CODETYPE_LOG (also read from ./.env) override [storage].

[practice]
# repository = "myrepo"   # Repository name or id opened by default
# content-width = %.2f    # Share of the terminal used for code (0-1)

[import]
# ext = [".go", ".rb"]    # Only import these extensions
# exclude-ext = [".md"]   # Never import these extensions

[storage]
# db = %q
# log = %q
`,
		defaultContentWidth,
		config.DefaultDBPath(),
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.ContentWidth <= 0 || cfg.ContentWidth > 1 {
		return fmt.Errorf("--content-width must be between 0 and 1")
	}
	return nil
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
