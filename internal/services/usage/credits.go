package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/orangecat-xyz/autorouter/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditsService maintains the satoshi ledger: one balance row per account
// plus an immutable transaction trail.
type CreditsService struct {
	db *gorm.DB
}

func NewCreditsService(db *gorm.DB) *CreditsService {
	return &CreditsService{db: db}
}

func (s *CreditsService) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.AccountCredit{},
		&models.CreditTransaction{},
	)
}

// GetAccountCredit retrieves the balance row for an account, creating a
// zero-balance row on first contact.
func (s *CreditsService) GetAccountCredit(ctx context.Context, accountID string) (*models.AccountCredit, error) {
	var credit models.AccountCredit

	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&credit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		credit = models.AccountCredit{
			AccountID: accountID,
		}

		if err := s.db.WithContext(ctx).Create(&credit).Error; err != nil {
			return nil, fmt.Errorf("failed to create account credit: %w", err)
		}

		return &credit, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get account credit: %w", err)
	}

	return &credit, nil
}

// CheckSufficientSats verifies the account can cover the given cost.
func (s *CreditsService) CheckSufficientSats(ctx context.Context, accountID string, requiredSats int64) error {
	credit, err := s.GetAccountCredit(ctx, accountID)
	if err != nil {
		return err
	}

	if credit.BalanceSats < requiredSats {
		return models.NewInsufficientCreditsError(accountID, requiredSats, credit.BalanceSats)
	}

	return nil
}

// DeductSats debits an account and records the usage transaction atomically.
// The balance may go negative: the pre-flight check happens in middleware,
// and a request already in flight is never rejected at settlement.
func (s *CreditsService) DeductSats(ctx context.Context, params models.DeductSatsParams) (*models.CreditTransaction, error) {
	if params.AmountSats <= 0 {
		return nil, models.NewValidationError(fmt.Sprintf("deduction must be positive, got %d sats", params.AmountSats), nil)
	}

	var transaction models.CreditTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credit models.AccountCredit
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", params.AccountID).
			First(&credit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			credit = models.AccountCredit{AccountID: params.AccountID}
			if err := tx.Create(&credit).Error; err != nil {
				return fmt.Errorf("failed to create account credit: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock account credit: %w", err)
		}

		newBalance := credit.BalanceSats - params.AmountSats
		newTotalUsed := credit.TotalUsed + params.AmountSats

		if err := tx.Model(&credit).Updates(map[string]any{
			"balance_sats": newBalance,
			"total_used":   newTotalUsed,
		}).Error; err != nil {
			return fmt.Errorf("failed to update credit balance: %w", err)
		}

		transaction = models.CreditTransaction{
			TransactionID:    uuid.New().String(),
			AccountID:        params.AccountID,
			UserID:           params.UserID,
			Type:             models.CreditTransactionUsage,
			AmountSats:       -params.AmountSats,
			BalanceAfterSats: newBalance,
			Description:      params.Description,
			Metadata:         params.Metadata,
			APIKeyID:         params.APIKeyID,
			DecisionID:       params.DecisionID,
		}

		if err := tx.Create(&transaction).Error; err != nil {
			return fmt.Errorf("failed to create credit transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

// AddSats credits an account and records the transaction atomically.
func (s *CreditsService) AddSats(ctx context.Context, params models.AddSatsParams) (*models.CreditTransaction, error) {
	if params.AmountSats <= 0 {
		return nil, models.NewValidationError(fmt.Sprintf("deposit must be positive, got %d sats", params.AmountSats), nil)
	}

	txType := params.Type
	if txType == "" {
		txType = models.CreditTransactionDeposit
	}

	var transaction models.CreditTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credit models.AccountCredit
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", params.AccountID).
			First(&credit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			credit = models.AccountCredit{AccountID: params.AccountID}
			if err := tx.Create(&credit).Error; err != nil {
				return fmt.Errorf("failed to create account credit: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock account credit: %w", err)
		}

		newBalance := credit.BalanceSats + params.AmountSats
		updates := map[string]any{
			"balance_sats": newBalance,
		}

		if txType == models.CreditTransactionDeposit || txType == models.CreditTransactionPromotional {
			updates["total_deposited"] = credit.TotalDeposited + params.AmountSats
		}

		if err := tx.Model(&credit).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update credit balance: %w", err)
		}

		transaction = models.CreditTransaction{
			TransactionID:    uuid.New().String(),
			AccountID:        params.AccountID,
			UserID:           params.UserID,
			Type:             txType,
			AmountSats:       params.AmountSats,
			BalanceAfterSats: newBalance,
			Description:      params.Description,
			Metadata:         params.Metadata,
		}

		if err := tx.Create(&transaction).Error; err != nil {
			return fmt.Errorf("failed to create credit transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &transaction, nil
}

// GetTransactionHistory returns ledger entries for an account, newest first.
func (s *CreditsService) GetTransactionHistory(ctx context.Context, accountID string, limit, offset int) ([]models.CreditTransaction, error) {
	var transactions []models.CreditTransaction

	query := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	return transactions, nil
}
