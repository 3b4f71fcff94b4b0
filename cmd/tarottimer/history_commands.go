package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/rollover"
	"github.com/conorfennell/tarottimer/internal/storage"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history [YYYY-MM-DD]",
		Short: "List drawn days, or show the cards of one day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				date, err := domain.ParseDate(args[0])
				if err != nil {
					return err
				}
				rec, dd, err := a.session.Lookup(cmd.Context(), date)
				if errors.Is(err, rollover.ErrDeckNotDrawn) {
					fmt.Fprintf(out, "No cards were drawn on %s.\n", date)
					return nil
				}
				if err != nil {
					return err
				}
				printDay(out, a, dd, &rec, date.Equal(a.session.ActiveDate()))
				return nil
			}

			dates, err := a.db.ListDates(cmd.Context())
			if err != nil {
				return err
			}
			if len(dates) == 0 {
				fmt.Fprintln(out, "No days drawn yet.")
				return nil
			}

			rows := make([][]string, 0, len(dates))
			for _, d := range dates {
				rec, err := a.db.Get(cmd.Context(), storage.Key(d))
				if err != nil {
					return err
				}
				memos, insights := "0", ""
				if rec != nil {
					memos = strconv.Itoa(len(rec.Memos))
					insights = rec.Insights
				}
				rows = append(rows, []string{d.String(), memos, insights})
			}
			fmt.Fprintln(out, renderTable([]string{"Date", "Memos", "Insights"}, rows, 1))
			return nil
		},
	}
}

func newDeckCommand(ctx *commandContext) *cobra.Command {
	var sources bool
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "List the loaded reference deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if sources {
				return printSources(cmd, a)
			}

			loc := a.locale()
			cards := a.table.Cards()
			rows := make([][]string, 0, len(cards))
			for _, c := range cards {
				rows = append(rows, []string{strconv.Itoa(c.ID), c.Name(loc), arcanaLabel(c), c.Upright})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d cards, fingerprint %s\n", a.cfg.Deck.Source, a.table.Len(), a.table.Hash())
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Arcana", "Upright"}, rows, 0))
			return nil
		},
	}
	cmd.Flags().BoolVar(&sources, "sources", false, "List every deck source loaded so far with its fingerprint")
	return cmd
}

func printSources(cmd *cobra.Command, a *app) error {
	list, err := a.db.GetAllSources(cmd.Context())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, src := range list {
		loaded := "-"
		if src.LastLoaded.Valid {
			loaded = src.LastLoaded.Time.UTC().Format("2006-01-02 15:04 UTC")
		}
		current := ""
		if src.DeckHash == a.table.Hash() {
			current = highlight(cmd.OutOrStdout(), "current")
		}
		rows = append(rows, []string{src.Source, shortHash(src.DeckHash), strconv.Itoa(src.CardCount), loaded, current})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Fingerprint", "Cards", "Last loaded", ""}, rows, 2))
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
