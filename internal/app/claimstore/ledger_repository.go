package claimstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnknownProof = errors.New("unknown proof")

type LedgerRepository interface {
	RecordProof(ctx context.Context, rec ClaimRecord) error
	MarkSubmitted(ctx context.Context, proofID, operationID, txHash, account string) error
	MarkFailed(ctx context.Context, proofID, code, message string) error
	Get(ctx context.Context, proofID string) (ClaimRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]ClaimRecord, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// RecordProof inserts rec as proved. Replaying the same proof is a no-op.
func (r *ledgerRepository) RecordProof(ctx context.Context, rec ClaimRecord) error {
	rec.Status = StatusProved
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
}

func (r *ledgerRepository) MarkSubmitted(ctx context.Context, proofID, operationID, txHash, account string) error {
	return r.update(ctx, proofID, map[string]any{
		"status":             StatusSubmitted,
		"relay_operation_id": operationID,
		"transaction_hash":   txHash,
		"account_address":    account,
		"error_code":         "",
		"error_message":      "",
	})
}

// MarkFailed records a failed submission. A proof that already landed on chain
// keeps its submitted status.
func (r *ledgerRepository) MarkFailed(ctx context.Context, proofID, code, message string) error {
	res := r.db.WithContext(ctx).
		Model(&ClaimRecord{}).
		Where("proof_id = ? AND status <> ?", proofID, StatusSubmitted).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_code":    code,
			"error_message": message,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, proofID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepository) Get(ctx context.Context, proofID string) (ClaimRecord, error) {
	var rec ClaimRecord
	err := r.db.WithContext(ctx).First(&rec, "proof_id = ?", proofID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClaimRecord{}, ErrUnknownProof
	}
	return rec, err
}

func (r *ledgerRepository) ListBySession(ctx context.Context, sessionID string) ([]ClaimRecord, error) {
	var recs []ClaimRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&recs).Error
	return recs, err
}

func (r *ledgerRepository) update(ctx context.Context, proofID string, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&ClaimRecord{}).
		Where("proof_id = ?", proofID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUnknownProof
	}
	return nil
}
