package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// walletTotals pairs a wallet's stored balances with the sums of its
// completed ledger effects.
type walletTotals struct {
	UserID           uuid.UUID `gorm:"column:user_id"`
	AvailableBalance int64     `gorm:"column:available_balance"`
	HeldBalance      int64     `gorm:"column:held_balance"`
	Balance          int64     `gorm:"column:balance"`
	WalletEffect     int64     `gorm:"column:wallet_effect"`
	HeldEffect       int64     `gorm:"column:held_effect"`
	Entries          int64     `gorm:"column:entries"`
}

// Repository reads the wallet and ledger tables. It never writes.
type Repository interface {
	ListWalletTotals(ctx context.Context, afterUserID uuid.UUID, limit int) ([]walletTotals, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const walletTotalsQuery = `
SELECT w.user_id,
       w.available_balance,
       w.held_balance,
       w.balance,
       COALESCE(SUM(l.wallet_effect), 0) AS wallet_effect,
       COALESCE(SUM(l.held_effect), 0)   AS held_effect,
       COUNT(l.id)                       AS entries
FROM wallets w
LEFT JOIN ledger_entries l
       ON l.user_id = w.user_id
      AND l.status = ?
WHERE w.user_id > ?
GROUP BY w.user_id, w.available_balance, w.held_balance, w.balance
ORDER BY w.user_id ASC
LIMIT ?`

func (r *repository) ListWalletTotals(ctx context.Context, afterUserID uuid.UUID, limit int) ([]walletTotals, error) {
	var rows []walletTotals
	err := r.db.WithContext(ctx).
		Raw(walletTotalsQuery, enums.LedgerEntryStatusCompleted, afterUserID, limit).
		Scan(&rows).Error
	return rows, err
}
