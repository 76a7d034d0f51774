package models

import "time"

// CreditTransactionType classifies satoshi ledger entries.
type CreditTransactionType string

const (
	CreditTransactionDeposit     CreditTransactionType = "deposit"
	CreditTransactionUsage       CreditTransactionType = "usage"
	CreditTransactionRefund      CreditTransactionType = "refund"
	CreditTransactionPromotional CreditTransactionType = "promotional"
)

// AccountCredit is an account's satoshi balance. Amounts are whole sats;
// there is no fractional unit below this.
type AccountCredit struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID      string    `gorm:"uniqueIndex;not null;size:255" json:"account_id"`
	BalanceSats    int64     `gorm:"not null;default:0" json:"balance_sats"`
	TotalDeposited int64     `gorm:"not null;default:0" json:"total_deposited"`
	TotalUsed      int64     `gorm:"not null;default:0" json:"total_used"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (AccountCredit) TableName() string {
	return "account_credits"
}

// CreditTransaction is one immutable ledger entry.
type CreditTransaction struct {
	ID               uint                  `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID    string                `gorm:"uniqueIndex;not null;size:36" json:"transaction_id"`
	AccountID        string                `gorm:"not null;index;size:255" json:"account_id"`
	UserID           string                `gorm:"index;size:255;default:''" json:"user_id,omitzero"`
	Type             CreditTransactionType `gorm:"not null;index;size:20" json:"type"`
	AmountSats       int64                 `gorm:"not null" json:"amount_sats"`
	BalanceAfterSats int64                 `gorm:"not null" json:"balance_after_sats"`
	Description      string                `gorm:"type:text;default:''" json:"description,omitzero"`
	Metadata         Metadata              `json:"metadata"`
	APIKeyID         uint                  `gorm:"index;default:0" json:"api_key_id,omitzero"`
	DecisionID       uint                  `gorm:"index;default:0" json:"decision_id,omitzero"`
	CreatedAt        time.Time             `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// DeductSatsParams describes a ledger debit.
type DeductSatsParams struct {
	AccountID   string
	UserID      string
	AmountSats  int64
	Description string
	Metadata    Metadata
	APIKeyID    uint
	DecisionID  uint
}

// AddSatsParams describes a ledger credit.
type AddSatsParams struct {
	AccountID   string
	UserID      string
	AmountSats  int64
	Type        CreditTransactionType
	Description string
	Metadata    Metadata
}
