package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/rollover"
	"github.com/conorfennell/tarottimer/internal/schedule"
)

func newTodayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's 24 cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			dd, err := a.session.Current()
			if errors.Is(err, rollover.ErrDeckNotDrawn) {
				fmt.Fprintf(out, "No cards drawn for %s. Run `tarottimer draw`.\n", a.session.ActiveDate())
				return nil
			}
			if err != nil {
				return err
			}
			rec, err := a.session.Record()
			if err != nil {
				return err
			}
			printDay(out, a, dd, &rec, true)
			return nil
		},
	}
}

func newDrawCommand(ctx *commandContext) *cobra.Command {
	var redraw bool
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw today's 24 cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			draw := a.session.Draw
			if redraw {
				draw = a.session.Redraw
			}
			dd, err := draw(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := a.session.Record()
			if err != nil {
				return err
			}
			printDay(cmd.OutOrStdout(), a, dd, &rec, true)
			return nil
		},
	}
	cmd.Flags().BoolVar(&redraw, "redraw", false, "Replace today's record, clearing memos and insights")
	return cmd
}

func newMemoCommand(ctx *commandContext) *cobra.Command {
	var insights bool
	cmd := &cobra.Command{
		Use:   "memo <hour> <text> | memo --insights <text>",
		Short: "Write a memo for an hour of today, or the day's insights",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if insights {
				if err := a.session.UpdateInsights(cmd.Context(), strings.Join(args, " ")); err != nil {
					return err
				}
				fmt.Fprintln(out, "Insights saved.")
				return nil
			}

			hour, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("hour must be a number between 0 and 23: %q", args[0])
			}
			text := strings.Join(args[1:], " ")
			if err := a.session.UpdateMemo(cmd.Context(), hour, text); err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintf(out, "Memo for %02d:00 cleared.\n", hour)
			} else {
				fmt.Fprintf(out, "Memo for %02d:00 saved.\n", hour)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&insights, "insights", false, "Set the day's insights instead of an hourly memo")
	return cmd
}

// printDay renders a day as a 24-row table. When live is set the current
// hour is marked and the time left until rollover is shown.
func printDay(out io.Writer, a *app, dd domain.DailyDeck, rec *domain.DailyRecord, live bool) {
	current := -1
	var untilRollover time.Duration
	if now, err := a.clock.Now(); err == nil && live {
		current = schedule.HourSlot(now)
		untilRollover = schedule.UntilMidnight(now).Truncate(time.Minute)
	}

	loc := a.locale()
	rows := make([][]string, 0, len(dd.Cards))
	for hour, c := range dd.Cards {
		slot := fmt.Sprintf("%02d:00", hour)
		if hour == current {
			slot = highlight(out, "▶ "+slot)
		}
		memo := ""
		if rec != nil {
			memo = rec.Memos[hour]
		}
		rows = append(rows, []string{slot, c.Name(loc), arcanaLabel(c), memo})
	}

	fmt.Fprintf(out, "Cards for %s\n", dd.Date)
	fmt.Fprintln(out, renderTable([]string{"Hour", "Card", "Arcana", "Memo"}, rows))
	if rec != nil && rec.Insights != "" {
		fmt.Fprintf(out, "Insights: %s\n", rec.Insights)
	}
	if current >= 0 {
		fmt.Fprintf(out, "Rollover in %s.\n", untilRollover)
	}
}

func arcanaLabel(c domain.Card) string {
	if c.Arcana == domain.Minor {
		return fmt.Sprintf("minor · %s %d", c.Suit, c.Number)
	}
	return fmt.Sprintf("major · %d", c.Number)
}
