package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/pkg/db/models"
)

// DLQRepository parks outbox events the publisher gave up on. Rows are only
// written from inside the publisher's transaction.
type DLQRepository struct{}

func NewDLQRepository() *DLQRepository {
	return &DLQRepository{}
}

func (DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("dlq insert requires a transaction")
	}
	if entry.ErrorMessage != nil {
		msg := clipRunes(*entry.ErrorMessage, maxErrorRunes)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}
