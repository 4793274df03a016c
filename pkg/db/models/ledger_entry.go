package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// LedgerEntry is an immutable record of one wallet posting. WalletEffect and
// HeldEffect are the signed deltas applied to the available and held
// balances; the balance columns snapshot the wallet after the mutation.
type LedgerEntry struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	EntryKind        enums.LedgerEntryKind   `gorm:"column:entry_kind;type:ledger_entry_kind_enum;not null"`
	Amount           int64                   `gorm:"column:amount;not null"`
	WalletEffect     int64                   `gorm:"column:wallet_effect;not null"`
	HeldEffect       int64                   `gorm:"column:held_effect;not null;default:0"`
	Status           enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status_enum;not null"`
	Reference        string                  `gorm:"column:reference;not null"`
	CounterpartyID   *uuid.UUID              `gorm:"column:counterparty_id;type:uuid"`
	AvailableBalance int64                   `gorm:"column:available_balance;not null"`
	HeldBalance      int64                   `gorm:"column:held_balance;not null"`
	Balance          int64                   `gorm:"column:balance;not null"`
	Metadata         json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
