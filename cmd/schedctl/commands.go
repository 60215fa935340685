package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/services"
)

type batchOp func(context.Context, []int64) (models.BatchResult, error)

func (a *app) countsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the new, learning and review counts of the current deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, err := a.study.Counts(cmd.Context())
			if err != nil {
				return err
			}
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func (a *app) nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next card to study",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := a.study.Next(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if sc == nil {
				fmt.Fprintln(out, "Congratulations! You have finished for now.")
				return nil
			}
			fmt.Fprintf(out, "card %d (%s)\n", sc.Card.ID, sc.Card.Queue)
			for _, f := range sc.Fields {
				fmt.Fprintf(out, "  %s\n", f)
			}
			for i, secs := range sc.Intervals {
				fmt.Fprintf(out, "  [%d] %s\n", i+1, formatInterval(secs))
			}
			printCounts(out, sc.Counts)
			return nil
		},
	}
}

func (a *app) answerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <card-id> <ease>",
		Short: "Answer the next card with ease 1-4",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid card id %q", args[0])
			}
			ease, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid ease %q", args[1])
			}

			// Each run starts a fresh session, so the card has to be handed
			// out before it can be answered.
			sc, err := a.study.Next(cmd.Context())
			if err != nil {
				return err
			}
			if sc == nil || sc.Card.ID != id {
				return fmt.Errorf("card %d is not the next card to study", id)
			}
			card, err := a.study.Answer(cmd.Context(), id, ease)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "card %d is now %s, due %d\n", card.ID, card.Queue, card.Due)
			return nil
		},
	}
}

func (a *app) batchCmd(use, short string, pick func(services.StudyService) batchOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <card-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			res, err := pick(a.study)(cmd.Context(), ids)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func (a *app) unburyCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "unbury",
		Short: "Unbury the cards of the current deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.study.Unbury(cmd.Context(), scope)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(sched.UnburyAll), "which buried cards: all, manual or siblings")
	return cmd
}

func (a *app) decksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "List decks with their due counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.study.Decks(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range list {
				fmt.Fprintf(out, "%6d  %-30s %6s %6s %6s\n", d.ID, d.Name,
					formatCount(d.New), formatCount(d.Learning), formatCount(d.Review))
			}
			return nil
		},
	}
}

func (a *app) deckCmd(use, short string, run func(*cobra.Command, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <deck-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid deck id %q", args[0])
			}
			return run(cmd, id)
		},
	}
}

func (a *app) selectCmd() *cobra.Command {
	return a.deckCmd("select", "Make a deck the current deck", func(cmd *cobra.Command, id int64) error {
		if err := a.study.SelectDeck(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "selected deck %d\n", id)
		return nil
	})
}

func (a *app) rebuildCmd() *cobra.Command {
	return a.deckCmd("rebuild", "Refill a filtered deck", func(cmd *cobra.Command, id int64) error {
		n, err := a.study.RebuildFiltered(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deck %d now holds %d cards\n", id, n)
		return nil
	})
}

func (a *app) emptyCmd() *cobra.Command {
	return a.deckCmd("empty", "Return the cards of a filtered deck to their home decks", func(cmd *cobra.Command, id int64) error {
		n, err := a.study.EmptyFiltered(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "returned %d cards from deck %d\n", n, id)
		return nil
	})
}

func (a *app) setVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-version <1|2>",
		Short:     "Switch the scheduler version",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"1", "2"},
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			if err := a.study.SetVersion(cmd.Context(), version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduler version is now %d\n", version)
			return nil
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid card id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func formatCount(n int) string {
	if n >= sched.ReportLimit {
		return strconv.Itoa(sched.ReportLimit) + "+"
	}
	return strconv.Itoa(n)
}

// formatInterval renders seconds the way the answer buttons show them.
func formatInterval(secs int64) string {
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%.1fh", float64(secs)/3600)
	case secs < 30*86400:
		return fmt.Sprintf("%dd", secs/86400)
	case secs < 365*86400:
		return fmt.Sprintf("%.1fmo", float64(secs)/(30*86400))
	default:
		return fmt.Sprintf("%.1fy", float64(secs)/(365*86400))
	}
}

func printCounts(w io.Writer, c models.Counts) {
	fmt.Fprintf(w, "new %s  learning %s  review %s\n", formatCount(c.New), formatCount(c.Learning), formatCount(c.Review))
}

func printBatch(w io.Writer, res models.BatchResult) {
	fmt.Fprintf(w, "changed %d cards\n", len(res.Changed))
	skipped := make([]int64, 0, len(res.Skipped))
	for id := range res.Skipped {
		skipped = append(skipped, id)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	for _, id := range skipped {
		fmt.Fprintf(w, "skipped %d: %s\n", id, res.Skipped[id])
	}
}
