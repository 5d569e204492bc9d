package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophdiary/internal/app"
	"github.com/dmitrijs2005/gophdiary/internal/models"
)

var errInconsistent = errors.New("platform schedule does not match the store")

// wallClockLayouts are accepted by --at, most specific first.
var wallClockLayouts = []string{
	models.WallClockLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseWallClock(s string) (time.Time, error) {
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected YYYY-MM-DDTHH:MM[:SS]", s)
}

// --- run ---

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deliver due reminders until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Run(ctx)
				return nil
			})
		},
	}
}

// --- add ---

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an entry with one reminder",
		Long: `Create an entry with one reminder and schedule its jobs.

The time is a wall-clock time interpreted in the configured zone.

Examples:
  diaryctl add --title "Buy milk" --at 2025-03-10T09:00 --recurrence daily
  diaryctl add --title "Dentist" --content "Bring the card" --at "2025-04-02 14:30"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			content, _ := cmd.Flags().GetString("content")
			at, _ := cmd.Flags().GetString("at")
			rule, _ := cmd.Flags().GetString("recurrence")
			sound, _ := cmd.Flags().GetString("sound")

			if title == "" {
				return errors.New("--title is required")
			}
			fireAt, err := parseWallClock(at)
			if err != nil {
				return err
			}
			rec, err := models.ParseRecurrence(rule)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entry := &models.Entry{Title: title, Content: content}
				report, err := a.Reminders().OnEntrySaved(ctx, entry, []models.Reminder{{
					FireAt:     fireAt,
					Active:     true,
					Recurrence: rec,
					Sound:      sound,
				}})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "entry %s\n", entry.ID)
				printReport(out, report)
				return nil
			})
		},
	}

	cmd.Flags().String("title", "", "entry title")
	cmd.Flags().String("content", "", "entry content, delivered as the notification body")
	cmd.Flags().String("at", "", "first fire time, YYYY-MM-DDTHH:MM[:SS]")
	cmd.Flags().String("recurrence", string(models.RecurrenceNone), "none, daily, weekly or monthly")
	cmd.Flags().String("sound", "", "custom notification sound")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// --- delete ---

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an entry and cancel its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reminders().OnEntryDeleted(ctx, args[0])
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

// --- toggle ---

func newToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <reminder-id>",
		Short: "Switch a reminder on or off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reminder id %q", args[0])
			}
			off, _ := cmd.Flags().GetBool("off")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reminders().OnReminderToggled(ctx, models.Reminder{ID: id}, !off)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().Bool("off", false, "deactivate instead of activate")
	return cmd
}

// --- list ---

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entries and their reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Store().GetAllEntries(ctx)
				if err != nil {
					return err
				}

				tw := newTable(cmd.OutOrStdout(), "ENTRY", "TITLE", "REMINDER", "AT", "RULE", "ACTIVE")
				for _, e := range entries {
					rs, err := a.Store().GetRemindersForEntry(ctx, e.ID)
					if err != nil {
						return err
					}
					if len(rs) == 0 {
						fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\n", e.ID, e.Title)
					}
					for _, r := range rs {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%t\n",
							e.ID, e.Title, r.ID, r.WallClock(), r.Recurrence, r.Active)
					}
				}
				return tw.Flush()
			})
		},
	}
}

// --- pending ---

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List jobs the platform still has to deliver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				pending, err := a.Gateway().Pending(ctx)
				if err != nil {
					return err
				}

				loc := a.Gateway().Location()
				tw := newTable(cmd.OutOrStdout(), "JOB", "FIRE AT", "TITLE")
				for _, p := range pending {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.FireAt.In(loc).Format(time.RFC3339), p.Title)
				}
				return tw.Flush()
			})
		},
	}
}

// --- audit ---

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Compare the platform schedule with the store",
		Long: `Compare the jobs the active reminders imply with the jobs the platform
reports as pending. Exits non-zero when they differ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reminders().Audit(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printStatus(out, "expected", "%d", report.Expected)
				printStatus(out, "pending", "%d", report.Pending)
				printStatus(out, "missing", "%v", report.Missing)
				printStatus(out, "stale", "%v", report.Stale)
				if report.Incomplete {
					printStatus(out, "incomplete", "platform could not be enumerated")
				}
				if !report.Consistent() {
					return errInconsistent
				}
				return nil
			})
		},
	}
}

// --- resync ---

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Cancel and reschedule the jobs of every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reminders().ResyncAll(ctx)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

// --- reset ---

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the platform schedule and re-initialize it",
		Long: `Cancel every job, purge the platform's persisted schedule state and
initialize the platform again. Unless --no-resync is given, every entry is
rescheduled afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noResync, _ := cmd.Flags().GetBool("no-resync")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				resetErr := a.Gateway().ResetSystem(ctx)
				if resetErr != nil {
					printStatus(cmd.ErrOrStderr(), "reset", "%v", resetErr)
				}
				if noResync {
					return resetErr
				}

				report, err := a.Reminders().ResyncAll(ctx)
				if err != nil {
					return errors.Join(resetErr, err)
				}
				printReport(cmd.OutOrStdout(), report)
				return resetErr
			})
		},
	}
	cmd.Flags().Bool("no-resync", false, "leave the platform empty after the reset")
	return cmd
}

// --- stats ---

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry and reminder counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Store().GetStatistics(ctx)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}
