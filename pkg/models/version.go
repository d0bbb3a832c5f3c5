package models

import "time"

// VersionStatusPublished is the only label a version is created with.
const VersionStatusPublished = "published"

// Version is an immutable snapshot of a workflow graph taken at publish time.
type Version struct {
	ID         int64     `json:"id"`
	WorkflowID int64     `json:"workflow_id"`
	Number     int       `json:"version"`
	Status     string    `json:"status"`
	Graph      *Graph    `json:"graph"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary drops the graph payload for listings.
func (v *Version) Summary() *VersionSummary {
	return &VersionSummary{
		ID:        v.ID,
		Number:    v.Number,
		Status:    v.Status,
		CreatedAt: v.CreatedAt,
	}
}

// VersionSummary is the listing view of a version.
type VersionSummary struct {
	ID        int64     `json:"id"`
	Number    int       `json:"version"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
