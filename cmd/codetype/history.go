package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/codetype/internal/export"
	"github.com/verte-zerg/codetype/internal/model"
	"github.com/verte-zerg/codetype/internal/stats"
	"github.com/verte-zerg/codetype/internal/store"
)

var (
	statsRepo        string
	statsSince       string
	statsLast        int
	statsCurveWindow int

	exportOut string
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show practice history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsRepo, "repo", "", "repository name or id filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N completed files")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 0 {
		return fmt.Errorf("--curve-window must be >= 0")
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	cfg := model.StatsConfig{
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	if statsRepo != "" {
		repo, err := e.store.FindRepository(ctx, statsRepo)
		if err != nil {
			return err
		}
		cfg.RepositoryID = repo.ID
	}

	report, err := stats.BuildReport(ctx, e.store, cfg)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), terminalWidth())
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <repo|all>",
		Short: "Export practice history to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVarP(&exportOut, "out", "o", defaultExportPath, "output .xlsx path")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	repos, cfg, err := exportScope(ctx, e.store, args[0])
	if err != nil {
		return err
	}
	report, err := stats.BuildReport(ctx, e.store, cfg)
	if err != nil {
		return err
	}
	if err := export.WriteWorkbook(exportOut, repos, report); err != nil {
		return err
	}
	_, err = okColor.Fprintf(cmd.OutOrStdout(), "Wrote %d sessions to %s\n", len(report.Sessions), exportOut)
	return err
}

func exportScope(ctx context.Context, st *store.Store, ref string) ([]model.Repository, model.StatsConfig, error) {
	if ref == "all" {
		repos, err := st.ListRepositories(ctx)
		if err != nil {
			return nil, model.StatsConfig{}, fmt.Errorf("failed to list repositories: %w", err)
		}
		return repos, model.StatsConfig{}, nil
	}
	repo, err := st.FindRepository(ctx, ref)
	if err != nil {
		return nil, model.StatsConfig{}, err
	}
	return []model.Repository{repo}, model.StatsConfig{RepositoryID: repo.ID}, nil
}
