package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/githubphadnis/xta/constants"
)

// ImportBatch is the bookkeeping row for one upload run.
type ImportBatch struct {
	ID                uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	Filename          string                `gorm:"not null" json:"filename"`
	Format            constants.Format      `gorm:"not null" json:"format"`
	Status            constants.BatchStatus `gorm:"not null;index" json:"status"`
	RowsSeen          int                   `json:"rows_seen"`
	Inserted          int                   `json:"inserted"`
	DuplicatesSkipped int                   `json:"duplicates_skipped"`
	RowsSkipped       int                   `json:"rows_skipped"`
	Reason            string                `json:"reason,omitempty"`
	StartedAt         time.Time             `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt        *time.Time            `json:"finished_at,omitempty"`
}

func (ImportBatch) TableName() string { return "import_batches" }

func (b *ImportBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
