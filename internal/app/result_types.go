package app

import (
	"time"

	"ops-backend/internal/core"
)

// SuggestionsResult is returned by SuggestMatches. GeneratedAt marks the
// snapshot time; balances may have moved by the time suggestions are applied.
type SuggestionsResult struct {
	Groups      []core.SuggestionGroup `json:"groups"`
	GeneratedAt time.Time              `json:"generated_at"`
}
