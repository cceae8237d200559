package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"flashcards-backend/internal/models"
)

func rankedCard(front string, created time.Time, last *models.Rating, lastAt *time.Time) models.RankedFlashcard {
	return models.RankedFlashcard{
		Flashcard:       models.Flashcard{ID: uuid.New(), Front: front, CreatedAt: created},
		LastResponse:    last,
		LastRespondedAt: lastAt,
	}
}

func rating(r models.Rating) *models.Rating { return &r }

func fronts(cards []models.Flashcard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Front
	}
	return out
}

func TestInsertionOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cards := []models.RankedFlashcard{
		rankedCard("third", base.Add(2*time.Minute), rating(models.RatingAgain), nil),
		rankedCard("first", base, nil, nil),
		rankedCard("second", base.Add(time.Minute), rating(models.RatingEasy), nil),
	}

	got := fronts(InsertionOrder.Rank(cards))
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if cards[0].Front != "third" {
		t.Fatalf("ranker must not reorder its input slice")
	}
}

func TestHistoryPriority(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	early := base.Add(time.Hour)
	late := base.Add(2 * time.Hour)

	cards := []models.RankedFlashcard{
		rankedCard("easy", base, rating(models.RatingEasy), &early),
		rankedCard("new-old", base.Add(time.Minute), nil, nil),
		rankedCard("again-late", base.Add(2*time.Minute), rating(models.RatingAgain), &late),
		rankedCard("hard", base.Add(3*time.Minute), rating(models.RatingHard), &early),
		rankedCard("again-early", base.Add(4*time.Minute), rating(models.RatingAgain), &early),
		rankedCard("new-young", base.Add(5*time.Minute), nil, nil),
	}

	got := fronts(HistoryPriority.Rank(cards))
	want := []string{"again-early", "again-late", "hard", "new-old", "new-young", "easy"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRankerByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"history", false},
		{"insertion", false},
		{"random", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := RankerByName(tc.name)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.name)
				}
				return
			}
			if err != nil || r == nil {
				t.Fatalf("unexpected result: %v, %v", r, err)
			}
		})
	}
}

func TestRankEmpty(t *testing.T) {
	if got := HistoryPriority.Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}
