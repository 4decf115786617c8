package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/codetype/internal/config"
	"github.com/verte-zerg/codetype/internal/importer"
	"github.com/verte-zerg/codetype/internal/library"
	"github.com/verte-zerg/codetype/internal/model"
)

var (
	importExt        []string
	importExcludeExt []string
	importName       string

	deleteYes bool
)

var (
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	mutedColor   = color.New(color.FgHiBlack)
	headingColor = color.New(color.Bold)
	errColor     = color.New(color.FgRed)
)

func addExtensionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&importExt, "ext", nil, "only keep these extensions (e.g. .go,.rb)")
	cmd.Flags().StringSliceVar(&importExcludeExt, "exclude-ext", nil, "drop these extensions")
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a local repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
	addExtensionFlags(cmd)
	cmd.Flags().StringVar(&importName, "name", "", "repository name (default: directory name)")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	applyStringSliceConfig(cmd, "ext", &importExt, e.cfg.Import.Extensions)
	applyStringSliceConfig(cmd, "exclude-ext", &importExcludeExt, e.cfg.Import.ExcludeExtensions)

	preview, err := importer.PreviewDir(args[0])
	if err != nil {
		return err
	}
	preview.Extensions = importer.SelectExtensions(preview.Extensions, importExt, importExcludeExt)
	if name := strings.TrimSpace(importName); name != "" {
		preview.Name = name
	}

	repo, err := library.Import(context.Background(), e.store, preview)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	files := len(model.FlattenFiles(repo.FileItems))
	if _, err := okColor.Fprintf(out, "Imported %s (#%d)", repo.Name, repo.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, " at %s: %d files\n", shortHash(repo.CommitHash), files)
	return err
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <dir>",
		Short: "Show the extensions an import would pick up",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreviewCmd,
	}
	addExtensionFlags(cmd)
	return cmd
}

func runPreviewCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringSliceConfig(cmd, "ext", &importExt, fileCfg.Import.Extensions)
	applyStringSliceConfig(cmd, "exclude-ext", &importExcludeExt, fileCfg.Import.ExcludeExtensions)
	preview, err := importer.PreviewDir(args[0])
	if err != nil {
		return err
	}
	preview.Extensions = importer.SelectExtensions(preview.Extensions, importExt, importExcludeExt)

	out := cmd.OutOrStdout()
	if _, err := headingColor.Fprintf(out, "%s @ %s\n", preview.Name, shortHash(preview.CommitHash)); err != nil {
		return err
	}
	for _, ext := range preview.Extensions {
		marker, c := "+", okColor
		if !ext.IsActive {
			marker, c = "-", mutedColor
		}
		if _, err := c.Fprintf(out, "%s %-20s %6d\n", marker, ext.Name, ext.FileCount); err != nil {
			return err
		}
	}
	return nil
}

func newReposCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List imported repositories",
		Args:  cobra.NoArgs,
		RunE:  runReposCmd,
	}
}

func runReposCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	repos, err := e.store.ListRepositories(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(repos) == 0 {
		_, err := fmt.Fprintln(out, "No repositories imported yet. Run: codetype import <dir>")
		return err
	}
	for _, repo := range repos {
		progress := progressColor(repo.Progress).Sprintf("%3.0f%%", repo.Progress*100)
		lastTyped := "never"
		if repo.LastTypedAt != nil {
			lastTyped = repo.LastTypedAt.Local().Format(time.DateTime)
		}
		if _, err := fmt.Fprintf(out, "%4d  %s  %-24s %s  %s\n",
			repo.ID, progress, repo.Name, shortHash(repo.CommitHash), mutedColor.Sprintf("%s · %s", lastTyped, repo.URL)); err != nil {
			return err
		}
	}
	return nil
}

func newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files <repo>",
		Short: "Print the file tree of a repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runFilesCmd,
	}
}

func runFilesCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	repo, err := e.store.FindRepository(context.Background(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := headingColor.Fprintf(out, "%s %s\n", repo.Name, progressColor(repo.Progress).Sprintf("%.0f%%", repo.Progress*100)); err != nil {
		return err
	}
	return printTree(out, model.SortFileItems(repo.FileItems), 0)
}

func printTree(w io.Writer, items []model.FileItem, depth int) error {
	for _, item := range items {
		name := item.Name
		if !item.IsFile() {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), statusMark(item.Status), name); err != nil {
			return err
		}
		if err := printTree(w, item.FileItems, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func statusMark(status model.FileStatus) string {
	switch status {
	case model.StatusTyped:
		return okColor.Sprint("✓")
	case model.StatusTyping:
		return warnColor.Sprint("◐")
	case model.StatusUnsupported:
		return errColor.Sprint("✗")
	default:
		return mutedColor.Sprint("·")
	}
}

func progressColor(progress float64) *color.Color {
	switch {
	case progress >= 1.0:
		return okColor
	case progress > 0:
		return warnColor
	default:
		return mutedColor
	}
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <repo>",
		Short: "Delete a repository and its progress",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	repo, err := e.store.FindRepository(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleteYes {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete %s (#%d) and all its progress?", repo.Name, repo.ID))
		if err != nil {
			return err
		}
		if !ok {
			logErrln("Aborted.")
			return nil
		}
	}
	if err := e.store.DeleteRepository(ctx, repo.ID); err != nil {
		return err
	}
	_, err = okColor.Fprintf(cmd.OutOrStdout(), "Deleted %s (#%d)\n", repo.Name, repo.ID)
	return err
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N] ", question); err != nil {
		return false, err
	}
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func shortHash(hash string) string {
	if len(hash) > 7 && hash != importer.WorktreeCommit {
		return hash[:7]
	}
	return hash
}
