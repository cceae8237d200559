package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTopicsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List or create topics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			topics, err := a.client.ListTopics(cmd.Context())
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No topics yet. Create one with `flashcards topics create NAME`.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCARDS")
			for _, t := range topics {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", t.ID, t.Name, t.FlashcardCount)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			topic, err := a.client.CreateTopic(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created topic %q (%s)\n", topic.Name, topic.ID)
			return nil
		},
	})

	return cmd
}
