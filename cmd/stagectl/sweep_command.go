package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/store"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete abandoned provisional imports",
		Long: "Deletes provisional works and contributors older than --older-than that no\n" +
			"commitment or live pending action depends on. With --dry-run, lists the\n" +
			"candidates instead.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.Staging.SweepThreshold
			}
			if olderThan < cfg.Staging.PendingTTL {
				return fmt.Errorf("--older-than %s is shorter than the pending action lifetime %s", olderThan, cfg.Staging.PendingTTL)
			}

			rt, err := ctx.openRuntime(ctx.logger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if dryRun {
				rows, err := rt.coordinator.Provisional(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sweep candidates older than %s (references are checked at sweep time):\n", olderThan)
				printProvisional(out, rows, time.Now())
				return nil
			}

			res, err := rt.coordinator.Sweep(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %d rows imported before %s\n", res.DeletedCount, res.Cutoff.Format(time.RFC3339))
			for _, id := range res.WorkIDs {
				fmt.Fprintf(out, "  work        %s\n", id)
			}
			for _, id := range res.ContributorIDs {
				fmt.Fprintf(out, "  contributor %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Minimum age of rows to sweep (default: configured sweep threshold)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List candidates without deleting")
	return cmd
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var kindFlag string
	var showPending bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List provisional rows, or live pending actions with --pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kind domain.EntityKind
			if kindFlag != "" {
				var err error
				if kind, err = domain.ParseEntityKind(kindFlag); err != nil {
					return err
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := ctx.openRuntime(ctx.logger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			if showPending {
				var actions []*domain.PendingAction
				for pa, err := range rt.pending.List(cmd.Context()) {
					if err != nil {
						return err
					}
					actions = append(actions, pa)
				}
				printPending(cmd.OutOrStdout(), actions, time.Now(), rt.pending.TTL())
				return nil
			}

			rows, err := rt.coordinator.Provisional(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			if kind != "" {
				rows = slices.DeleteFunc(rows, func(r store.ProvisionalRow) bool { return r.Kind != kind })
			}
			printProvisional(cmd.OutOrStdout(), rows, time.Now())
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only rows imported at least this long ago")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only rows of this kind: work or contributor")
	cmd.Flags().BoolVar(&showPending, "pending", false, "List live pending actions instead of provisional rows")
	return cmd
}

func printProvisional(w io.Writer, rows []store.ProvisionalRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No provisional rows")
		return
	}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Kind.String(),
			r.ID,
			r.ExternalKey,
			r.Label,
			r.ImportedBy,
			formatAge(now.Sub(r.ImportedAt)),
			strconv.Itoa(r.References),
		})
	}
	renderTable(w,
		[]string{"Kind", "ID", "External Key", "Label", "Imported By", "Age", "Refs"},
		data,
		[]columnAlign{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func printPending(w io.Writer, actions []*domain.PendingAction, now time.Time, ttl time.Duration) {
	if len(actions) == 0 {
		fmt.Fprintln(w, "No pending actions")
		return
	}
	data := make([][]string, 0, len(actions))
	for _, pa := range actions {
		data = append(data, []string{
			pa.SessionID,
			pa.UserID,
			pa.WorkID,
			pa.ExternalKey,
			string(pa.Intent),
			strconv.FormatBool(pa.WasImported),
			formatAge(pa.ExpiresAt(ttl).Sub(now)),
		})
	}
	renderTable(w,
		[]string{"Session", "User", "Work ID", "External Key", "Intent", "Imported", "Expires In"},
		data,
		[]columnAlign{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
