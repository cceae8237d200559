package repository

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"flashcards-backend/internal/models"
)

// Ranker decides the study order of a topic's cards.
type Ranker interface {
	Rank(cards []models.RankedFlashcard) []models.Flashcard
}

// RankerFunc adapts a plain function to Ranker.
type RankerFunc func(cards []models.RankedFlashcard) []models.Flashcard

func (f RankerFunc) Rank(cards []models.RankedFlashcard) []models.Flashcard { return f(cards) }

// InsertionOrder keeps cards in creation order.
var InsertionOrder Ranker = RankerFunc(func(cards []models.RankedFlashcard) []models.Flashcard {
	sorted := append([]models.RankedFlashcard(nil), cards...)
	sort.SliceStable(sorted, func(i, j int) bool { return insertedBefore(sorted[i], sorted[j]) })
	return unwrap(sorted)
})

// HistoryPriority surfaces cards the user struggled with last time:
// Again, then Hard, then never rated, then Easy. Inside a class the card
// rated longest ago comes first.
var HistoryPriority Ranker = RankerFunc(func(cards []models.RankedFlashcard) []models.Flashcard {
	sorted := append([]models.RankedFlashcard(nil), cards...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if pa, pb := historyClass(a), historyClass(b); pa != pb {
			return pa < pb
		}
		if a.LastRespondedAt != nil && b.LastRespondedAt != nil && !a.LastRespondedAt.Equal(*b.LastRespondedAt) {
			return a.LastRespondedAt.Before(*b.LastRespondedAt)
		}
		return insertedBefore(a, b)
	})
	return unwrap(sorted)
})

// RankerByName resolves the RANKING_STRATEGY setting.
func RankerByName(name string) (Ranker, error) {
	switch name {
	case "", "history":
		return HistoryPriority, nil
	case "insertion":
		return InsertionOrder, nil
	default:
		return nil, fmt.Errorf("unknown ranking strategy %q", name)
	}
}

func historyClass(c models.RankedFlashcard) int {
	if c.LastResponse == nil {
		return 2
	}
	switch *c.LastResponse {
	case models.RatingAgain:
		return 0
	case models.RatingHard:
		return 1
	default:
		return 3
	}
}

func insertedBefore(a, b models.RankedFlashcard) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func unwrap(cards []models.RankedFlashcard) []models.Flashcard {
	return lo.Map(cards, func(c models.RankedFlashcard, _ int) models.Flashcard { return c.Flashcard })
}
