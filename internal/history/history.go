// Package history persists the audit trail the Scheduler & Dedup
// Coordinator produces: blacklist transitions and per-instance
// success/failure counters, so they survive a process restart. The
// routing decision itself stays in-memory and config-driven; this is
// the one place a database round-trip is warranted.
package history

import (
	"time"

	"gorm.io/gorm"
)

// BlacklistEvent is one blacklist/unblacklist transition for a pipeline.
type BlacklistEvent struct {
	ID         uint      `gorm:"primaryKey"`
	PipelineID string    `gorm:"index;size:255"`
	Action     string    `gorm:"size:32"` // "blacklist" | "unblacklist"
	Reason     string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"index"`
}

// InstanceCounter is the running success/failure tally for one provider instance.
type InstanceCounter struct {
	ID         uint      `gorm:"primaryKey"`
	InstanceID string    `gorm:"uniqueIndex;size:255"`
	Successes  int64
	Failures   int64
	UpdatedAt  time.Time
}

// InitDatabase runs the auto-migration for the history schema.
func InitDatabase(db *gorm.DB) error {
	return db.AutoMigrate(&BlacklistEvent{}, &InstanceCounter{})
}

// RecordBlacklist appends a blacklist transition event.
func RecordBlacklist(db *gorm.DB, pipelineID, action, reason string) error {
	return db.Create(&BlacklistEvent{
		PipelineID: pipelineID,
		Action:     action,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}).Error
}

// RecordOutcome increments the success or failure counter for an instance.
func RecordOutcome(db *gorm.DB, instanceID string, success bool) error {
	var counter InstanceCounter
	err := db.Where(InstanceCounter{InstanceID: instanceID}).
		Attrs(InstanceCounter{InstanceID: instanceID}).
		FirstOrCreate(&counter).Error
	if err != nil {
		return err
	}

	if success {
		counter.Successes++
	} else {
		counter.Failures++
	}
	counter.UpdatedAt = time.Now()
	return db.Save(&counter).Error
}
