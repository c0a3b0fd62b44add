package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/spf13/cobra"
)

func newScanCmd(configPath *string) *cobra.Command {
	var (
		block    bool
		keywords []string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print the decisions",
		Long: `Search every configured keyword once, classify the matching posts and print
the resulting decisions. With --block the supportive authors are added to the
configured blocklist afterwards.

Examples:
  blocksweep scan
  blocksweep scan --keyword Foo --keyword Bar
  blocksweep scan --block`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = audit.WithSource(ctx, "cli")

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(keywords) > 0 {
				a.cfg.Scan.Keywords = keywords
			}
			return runScan(ctx, a, cmd.OutOrStdout(), block)
		},
	}
	cmd.Flags().BoolVar(&block, "block", false, "Add supportive authors to the blocklist after the scan")
	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "Keyword to scan for, overrides scan.keywords (repeatable)")
	return cmd
}

func newUnblockAllCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock-all",
		Short: "Remove every member from the blocklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = audit.WithSource(ctx, "cli")

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.client.CreateSession(ctx)
			if err != nil {
				return fmt.Errorf("authenticating: %w", err)
			}
			out, err := a.reconciler.UnblockAll(ctx, sess)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d of %d blocklist members\n", out.Succeeded, out.Attempted)
			return nil
		},
	}
}

func runScan(ctx context.Context, a *app, w io.Writer, block bool) error {
	if len(a.cfg.Scan.Keywords) == 0 {
		return errors.New("no keywords: set scan.keywords or pass --keyword")
	}

	sess, err := a.client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	res, err := a.scanner.Run(ctx, sess, a.cfg.Scan.Keywords)
	if err != nil {
		return err
	}

	if err := printRecords(w, a.store.ListSupportive(), a.store.ListOpposing()); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nscan %s: %d supportive authors, %d posts classified, %d skipped\n",
		res.ScanID, len(res.FoundUsers), res.Admitted, res.Skipped)

	if !block {
		return nil
	}
	out, err := a.reconciler.BlockUsers(ctx, sess, res.FoundUsers)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "blocked %d of %d authors\n", out.Succeeded, out.Attempted)
	return nil
}

func printRecords(w io.Writer, supportive, opposing []moderation.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DECISION\tKEYWORD\tINTENT\tSOURCE\tAUTHOR\tREASONING")
	for _, group := range []struct {
		label   string
		records []moderation.Record
	}{
		{"block", supportive},
		{"keep", opposing},
	} {
		for _, r := range group.records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				group.label, r.Keyword, r.Intent, r.Source, r.AuthorDID, oneLine(r.Reasoning, 80))
		}
	}
	return tw.Flush()
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
