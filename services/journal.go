package services

import (
	"time"

	"casino-wager-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementJournal persists the terminal-state record a settlement is
// driven from. The row is written before any funds move; MarkSettled
// flips it exactly once, which gates the one-shot side effects (stats,
// notifications) behind the first successful settlement pass.
type SettlementJournal interface {
	Record(rec *models.GameRecord) error
	// MarkSettled reports whether this call performed the flip.
	MarkSettled(challengeID string) (bool, error)
	Unsettled(limit int) ([]models.GameRecord, error)
}

// GormJournal stores game records in postgres.
type GormJournal struct {
	DB *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{DB: db}
}

// Record inserts the journal row, ignoring a duplicate challenge ID so a
// re-driven settlement does not fail on its own journal entry.
func (j *GormJournal) Record(rec *models.GameRecord) error {
	return j.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "challenge_id"}},
		DoNothing: true,
	}).Create(rec).Error
}

func (j *GormJournal) MarkSettled(challengeID string) (bool, error) {
	now := time.Now()
	res := j.DB.Model(&models.GameRecord{}).
		Where("challenge_id = ? AND settled = ?", challengeID, false).
		Updates(map[string]interface{}{
			"settled":    true,
			"settled_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (j *GormJournal) Unsettled(limit int) ([]models.GameRecord, error) {
	var recs []models.GameRecord
	err := j.DB.Where("settled = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
