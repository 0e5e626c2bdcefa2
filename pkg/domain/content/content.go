package content

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Format string

const (
	FormatMermaid  Format = "mermaid"
	FormatPlantUML Format = "plantuml"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusManualReview Status = "manual_review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusManualReview:
		return true
	}
	return false
}

// Candidate is the read-only view of a diagram handed to the safety
// pipeline. The surrounding content-management subsystem owns the full
// record; the pipeline never mutates it.
type Candidate struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	SourceText string    `json:"source_text"`
	Format     Format    `json:"format"`
}

// Diagram is the persisted slice of the content record the pipeline is
// allowed to touch: its moderation status. Status changes happen only
// through the decision recorder, in the same transaction as the audit
// log entry.
type Diagram struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Diagram) TableName() string {
	return "diagrams"
}

func (d *Diagram) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("invalid status: %s", d.Status)
	}
	return nil
}
