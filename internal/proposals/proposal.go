package proposals

import (
	"log/slog"
	"strings"

	"github.com/matrixise/daodash/internal/indexer"
)

// Status is the normalized lifecycle state of a proposal
type Status string

const (
	StatusOpen     Status = "open"
	StatusPassed   Status = "passed"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
	StatusUnknown  Status = "unknown"
)

const (
	DefaultTitle       = "Untitled Proposal"
	DefaultDescription = "No description provided"
)

// Proposal is a display record built from one indexer entry
type Proposal struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Item is a proposal together with its expand state
type Item struct {
	Proposal
	Expanded bool `json:"expanded"`
}

// ParseStatus maps an indexer status onto Status; anything unrecognized,
// including an empty value, is StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen
	case StatusPassed:
		return StatusPassed
	case StatusRejected:
		return StatusRejected
	case StatusExecuted:
		return StatusExecuted
	default:
		return StatusUnknown
	}
}

// Normalize converts raw entries into proposals, most recent first. Entries
// without an id are skipped and repeated ids keep their first occurrence in
// the returned order.
func Normalize(raws []indexer.RawProposal, logger *slog.Logger) []Proposal {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]Proposal, 0, len(raws))
	seen := make(map[string]bool, len(raws))

	for i := len(raws) - 1; i >= 0; i-- {
		raw := raws[i]
		id := string(raw.ID)
		if id == "" {
			logger.Warn("Skipping proposal without id", "index", i)
			continue
		}
		if seen[id] {
			logger.Warn("Skipping duplicate proposal id", "id", id, "index", i)
			continue
		}
		seen[id] = true

		p := Proposal{
			ID:          id,
			Title:       DefaultTitle,
			Description: DefaultDescription,
			Status:      StatusUnknown,
			CreatedAt:   string(raw.CreatedAt),
			CompletedAt: string(raw.CompletedAt),
		}
		if body := raw.Proposal; body != nil {
			if body.Title != "" {
				p.Title = string(body.Title)
			}
			if body.Description != "" {
				p.Description = string(body.Description)
			}
			p.Status = ParseStatus(string(body.Status))
		}
		out = append(out, p)
	}

	return out
}
