package models

import "time"

type SearchStatus string

const (
	SearchQueued    SearchStatus = "queued"
	SearchRunning   SearchStatus = "running"
	SearchCompleted SearchStatus = "completed"
	SearchFailed    SearchStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s SearchStatus) Terminal() bool {
	return s == SearchCompleted || s == SearchFailed
}

// SearchRequest is created by the API and mutated only by the search worker.
type SearchRequest struct {
	ID           string
	QueryHash    string
	Query        Query
	Status       SearchStatus
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}
