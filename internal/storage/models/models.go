package models

import "time"

type User struct {
	ID             string
	Username       string
	Email          string
	HashedPassword string
	Tier           string
	IsActive       bool
	CreatedAt      time.Time
}

// UsageRecord is an append-only log entry consumed by the usage gate's
// trailing-window counts.
type UsageRecord struct {
	ID        int
	UserID    string
	Action    string
	Metadata  string
	Timestamp time.Time
}

type Document struct {
	ID         string
	Filename   string
	FileType   string
	ChunkCount int
	UploadedBy string
	UploadedAt time.Time
}

type ChatRecord struct {
	ID         string
	UserID     string
	Question   string
	Answer     string
	NumSources int
	LatencyMS  int
	CreatedAt  time.Time
}
