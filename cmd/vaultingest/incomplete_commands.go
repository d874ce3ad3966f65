package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vaultingest/internal/session"
)

func newIncompleteCommand(ctx *commandContext) *cobra.Command {
	incompleteCmd := &cobra.Command{
		Use:   "incomplete",
		Short: "Inspect and manage incomplete upload sessions",
	}

	incompleteCmd.AddCommand(newIncompleteListCommand(ctx))
	incompleteCmd.AddCommand(newIncompleteClearCommand(ctx))
	incompleteCmd.AddCommand(newIncompletePruneCommand(ctx))

	return incompleteCmd
}

func newIncompleteListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List incomplete upload sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				records, err := eng.ctrl.ListIncomplete(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No incomplete sessions")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						strconv.FormatInt(record.ID, 10),
						record.Filename,
						humanize.Bytes(uint64(record.Size)),
						string(record.Status),
						describeSessionProgress(record),
						humanize.Time(record.UpdatedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Filename", "Size", "Status", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func describeSessionProgress(record *session.Record) string {
	if record.Size > 0 && record.Status != session.StatusProcessing {
		return fmt.Sprintf("%s of %s",
			humanize.Bytes(uint64(record.Offset)), humanize.Bytes(uint64(record.Size)))
	}
	if record.ProgressStage != "" {
		return fmt.Sprintf("%s %d%%", record.ProgressStage, int(record.ProgressPercent))
	}
	return "-"
}

func newIncompleteClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear [id]",
		Short: "Delete incomplete sessions, terminating their remote sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll == (len(args) == 1) {
				return errors.New("specify a session id or --all, not both")
			}

			return ctx.withEngine(func(eng *engine) error {
				out := cmd.OutOrStdout()
				if clearAll {
					removed, err := eng.ctrl.ClearAllIncomplete(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d incomplete sessions\n", removed)
					return nil
				}

				id, err := parseSessionID(args[0])
				if err != nil {
					return err
				}
				removed, err := eng.ctrl.ClearIncomplete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(out, "Session %d not found\n", id)
					return nil
				}
				fmt.Fprintf(out, "Session %d removed\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Delete every incomplete session")
	return cmd
}

func newIncompletePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions untouched for longer than the configured window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine) error {
				pruned, err := eng.ctrl.PruneStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale sessions\n", pruned)
				return nil
			})
		},
	}
}

func parseSessionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}
