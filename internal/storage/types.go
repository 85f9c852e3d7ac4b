package storage

import "time"

// Status is the processing state of a frontier entry.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
)

// Observation is one (phrase, count) pair reported by a lookup.
type Observation struct {
	Phrase string
	Count  int64
}

// Record is a stored phrase with its first-seen count.
type Record struct {
	Phrase string
	Count  int64
}

// Run is one journaled expansion run.
type Run struct {
	ID             string
	Seed           string
	Region         *int
	Budget         int
	StartedAt      time.Time
	FinishedAt     time.Time
	CompletedCalls int
	Reason         string
}

// Stats holds aggregate statistics about a frontier store.
type Stats struct {
	TotalPhrases     int64
	PendingPhrases   int64
	ProcessedPhrases int64
	TopPhrases       []Record
	RecentRuns       []Run
}
