package ledgerexport

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// Row mirrors the wallet_ledger_entries BigQuery schema.
type Row struct {
	EventID          string               `bigquery:"event_id"`
	EntryID          string               `bigquery:"entry_id"`
	UserID           string               `bigquery:"user_id"`
	EntryKind        string               `bigquery:"entry_kind"`
	Status           string               `bigquery:"status"`
	AmountKobo       int64                `bigquery:"amount_kobo"`
	WalletEffectKobo int64                `bigquery:"wallet_effect_kobo"`
	HeldEffectKobo   int64                `bigquery:"held_effect_kobo"`
	Reference        string               `bigquery:"reference"`
	CounterpartyID   cbigquery.NullString `bigquery:"counterparty_id"`
	AvailableKobo    int64                `bigquery:"available_balance_kobo"`
	HeldKobo         int64                `bigquery:"held_balance_kobo"`
	BalanceKobo      int64                `bigquery:"balance_kobo"`
	OccurredAt       time.Time            `bigquery:"occurred_at"`
	ExportedAt       time.Time            `bigquery:"exported_at"`
	Payload          cbigquery.NullJSON   `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The ledger entry id doubles as the
// streaming insert id so retried batches are deduplicated by BigQuery.
func (r *Row) Save() (map[string]cbigquery.Value, string, error) {
	saver := &cbigquery.StructSaver{Struct: r, InsertID: r.EntryID}
	return saver.Save()
}
