package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flashcards-backend/internal/models"
	"flashcards-backend/internal/study"
)

// ratingFor maps the three answer buttons to stored ratings.
func ratingFor(answer string) (models.Rating, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "1", "bad", "again":
		return models.RatingAgain, true
	case "2", "medium", "hard":
		return models.RatingHard, true
	case "3", "good", "easy":
		return models.RatingEasy, true
	}
	return "", false
}

func newStudyCmd(a *app) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "study",
		Short: "Study a topic's flashcards",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			topicID, err := uuid.Parse(topic)
			if err != nil {
				return fmt.Errorf("--topic must be a topic id: %w", err)
			}

			m := study.NewMachine(a.client, a.log)
			if err := m.SelectTopic(cmd.Context(), topicID); err != nil {
				return err
			}
			return runStudy(cmd, m)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "topic id")
	cmd.MarkFlagRequired("topic")
	return cmd
}

func runStudy(cmd *cobra.Command, m *study.Machine) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	for {
		snap := m.Snapshot()
		switch snap.State {
		case study.ShowingFront:
			fmt.Fprintf(out, "\n── %s: card %d/%d ──\nQ: %s\n", snap.TopicName, snap.Index+1, snap.Total, snap.Current.Front)
			if _, err := p.ask("(press enter to reveal) "); err != nil {
				return stopEarly(out, err)
			}
			if err := m.RevealAnswer(); err != nil {
				return err
			}

		case study.ShowingBack:
			fmt.Fprintf(out, "A: %s\n", snap.Current.Back)
			ans, err := p.ask("How did it go? [1] bad [2] medium [3] good: ")
			if err != nil {
				return stopEarly(out, err)
			}
			rating, ok := ratingFor(ans)
			if !ok {
				fmt.Fprintln(out, "Please answer 1, 2 or 3.")
				continue
			}
			if err := m.Rate(cmd.Context(), rating); err != nil {
				return err
			}

		case study.Finished:
			fmt.Fprintf(out, "\nDone! You reviewed %d card(s).\n", snap.Total)
			if snap.Unsynced > 0 {
				fmt.Fprintf(out, "%d rating(s) could not be saved.\n", snap.Unsynced)
			}
			return m.EndSession()

		case study.Failed:
			return errors.New(snap.Err)

		default:
			return fmt.Errorf("unexpected state %s", snap.State)
		}
	}
}

func stopEarly(out io.Writer, err error) error {
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(out, "\nStopped.")
		return nil
	}
	return err
}
