package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flashcards-backend/internal/models"
	"flashcards-backend/internal/suggestions"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		topic   string
		count   int
		file    string
		youtube string
		text    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate flashcards from a source and review them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			topicID, err := uuid.Parse(topic)
			if err != nil {
				return fmt.Errorf("--topic must be a topic id: %w", err)
			}

			source, err := a.loadSource(cmd, file, youtube, text)
			if err != nil {
				return err
			}

			mgr := suggestions.NewManager(a.client, a.client, 0, a.log)
			defer mgr.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating %d flashcards...\n", count)
			if err := mgr.Generate(cmd.Context(), source, topicID, count); err != nil {
				return err
			}
			return review(cmd, mgr)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "topic id")
	cmd.Flags().IntVar(&count, "count", 5, "number of flashcards (1-10)")
	cmd.Flags().StringVar(&file, "file", "", "source file (.txt, .pdf, .docx)")
	cmd.Flags().StringVar(&youtube, "youtube", "", "YouTube video URL")
	cmd.Flags().StringVar(&text, "text", "", "source text")
	cmd.MarkFlagRequired("topic")
	cmd.MarkFlagsMutuallyExclusive("file", "youtube", "text")
	return cmd
}

// loadSource resolves the source text. Plain text files are read locally;
// other formats go through the server's extractor.
func (a *app) loadSource(cmd *cobra.Command, file, youtube, text string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case youtube != "":
		src, err := a.client.SourceFromYouTube(cmd.Context(), youtube)
		if err != nil {
			return "", err
		}
		return src.SourceText, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(filepath.Ext(file), ".txt") {
			return string(data), nil
		}
		src, err := a.client.UploadSourceFile(cmd.Context(), filepath.Base(file), data)
		if err != nil {
			return "", err
		}
		if src.Truncated {
			fmt.Fprintf(cmd.ErrOrStderr(), "Source truncated to %d characters\n", src.Characters)
		}
		return src.SourceText, nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func review(cmd *cobra.Command, mgr *suggestions.Manager) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	var kept int
	queue := mgr.Suggestions()
	for i := 0; i < len(queue); i++ {
		id := queue[i].ID
		s, ok := mgr.Get(id)
		if !ok {
			continue
		}
		printSuggestion(out, i+1, len(queue), s)

		ans, err := p.ask("[a]ccept [e]dit [r]egenerate [s]kip [q]uit: ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(ans) {
		case "a", "accept":
			if err := mgr.AcceptOne(ctx, id); err != nil {
				fmt.Fprintf(out, "Could not save: %v\n", err)
				i--
				continue
			}
			kept++
			fmt.Fprintln(out, "Saved.")
		case "e", "edit":
			saved, err := editSuggestion(cmd, p, mgr, id)
			if err != nil {
				return err
			}
			if !saved {
				i--
				continue
			}
			kept++
		case "r", "regenerate":
			if err := mgr.RegenerateOne(ctx, id); err != nil {
				fmt.Fprintf(out, "Could not regenerate: %v\n", err)
			}
			i--
		case "s", "skip", "":
		case "q", "quit":
			i = len(queue)
		default:
			fmt.Fprintln(out, "Unknown choice.")
			i--
		}
	}

	fmt.Fprintf(out, "%d flashcard(s) saved.\n", kept)
	return nil
}

func editSuggestion(cmd *cobra.Command, p *prompter, mgr *suggestions.Manager, id uuid.UUID) (bool, error) {
	out := cmd.OutOrStdout()
	if err := mgr.ToggleEdit(id); err != nil {
		return false, err
	}
	s, _ := mgr.Get(id)

	front, err := p.askDefault("Front", s.Front)
	if err != nil {
		return false, err
	}
	back, err := p.askDefault("Back", s.Back)
	if err != nil {
		return false, err
	}

	ans, err := p.ask("[s]ave or [c]ancel: ")
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(strings.ToLower(ans), "c") {
		return false, mgr.CancelEdit(id)
	}

	if err := mgr.SaveEdit(cmd.Context(), id, front, back); err != nil {
		fmt.Fprintf(out, "Could not save: %v\n", err)
		return false, mgr.CancelEdit(id)
	}
	fmt.Fprintln(out, "Saved edited card.")
	return true, nil
}

func printSuggestion(w io.Writer, n, total int, s models.FlashcardSuggestion) {
	fmt.Fprintf(w, "\n── Suggestion %d/%d ──\nQ: %s\nA: %s\n", n, total, s.Front, s.Back)
}
