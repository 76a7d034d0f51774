package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunClickHouseMigrations creates the analytics schema directly. GORM's
// AutoMigrate misbehaves against the ClickHouse driver, so the tables are
// declared as ordered SQL statements instead.
func RunClickHouseMigrations(db *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS routing_decisions (
			id UInt64,
			request_id String,
			api_key_id UInt32,
			user_id String,
			model String,
			provider String,
			tier String,
			task_type String,
			complexity_score Float64,
			tokens_input Int32,
			tokens_output Int32,
			tokens_total Int32,
			estimated_cost_sats Int64,
			cache_tier String,
			fallback UInt8,
			reason String,
			latency_ms Int32,
			metadata String,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (created_at, api_key_id)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id UInt32,
			name String,
			key_hash String,
			key_prefix String,
			user_id String,
			metadata String,
			scopes String,
			rate_limit_rpm Int32,
			budget_sats Int64,
			budget_sats_used Int64,
			budget_reset_type String,
			budget_reset_at DateTime,
			is_active UInt8,
			expires_at DateTime,
			last_used_at DateTime,
			created_at DateTime DEFAULT now(),
			updated_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY id`,

		`CREATE TABLE IF NOT EXISTS account_credits (
			id UInt32,
			account_id String,
			balance_sats Int64,
			total_deposited Int64,
			total_used Int64,
			created_at DateTime DEFAULT now(),
			updated_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY id`,

		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id UInt32,
			transaction_id String,
			account_id String,
			user_id String,
			type String,
			amount_sats Int64,
			balance_after_sats Int64,
			description String,
			metadata String,
			api_key_id UInt32,
			decision_id UInt32,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (account_id, created_at)`,
	}

	for _, query := range queries {
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
