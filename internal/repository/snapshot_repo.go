package repository

import (
	"context"

	"payengine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const snapshotBatchSize = 500

// SnapshotRepository 将最终账户快照导出到 MySQL
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveAll 同一 run_id 重复导出时覆盖已有行
func (r *SnapshotRepository) SaveAll(ctx context.Context, runID string, accounts []model.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	rows := make([]model.AccountSnapshot, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, model.NewAccountSnapshot(runID, account))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "client_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"available", "held", "total", "locked"}),
		}).
		CreateInBatches(rows, snapshotBatchSize).Error
}

func (r *SnapshotRepository) ListByRunID(ctx context.Context, runID string) ([]model.AccountSnapshot, error) {
	var rows []model.AccountSnapshot
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("client_id ASC").
		Find(&rows).Error
	return rows, err
}
