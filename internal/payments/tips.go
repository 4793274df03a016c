package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/walletcore/internal/wallets"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

type tipStatus int

const (
	tipPending tipStatus = iota
	tipCredited
	tipReversed
)

// tipPostings is one tip's identity: the debit lives under reference on the
// sender, the credits under the same reference on their owners and the
// reversal under reference+":reversal" on the sender.
type tipPostings struct {
	sender    uuid.UUID
	recipient uuid.UUID
	reference string
	amount    int64
	credits   []wallets.PostingInput
}

func (t tipPostings) reversalReference() string { return t.reference + ":reversal" }

func (s *service) tipCredits(tip tipPostings, cut, net int64) []wallets.PostingInput {
	var credits []wallets.PostingInput
	if net > 0 {
		credits = append(credits, wallets.PostingInput{
			UserID:         tip.recipient,
			Kind:           enums.LedgerEntryTipReceived,
			AvailableDelta: net,
			Amount:         tip.amount,
			Reference:      tip.reference,
			CounterpartyID: &tip.sender,
			Metadata:       map[string]any{"platform_cut": cut},
		})
	}
	if cut > 0 && s.platform != uuid.Nil {
		credits = append(credits, wallets.PostingInput{
			UserID:         s.platform,
			Kind:           enums.LedgerEntryPlatformFee,
			AvailableDelta: cut,
			Reference:      tip.reference,
			CounterpartyID: &tip.sender,
		})
	}
	return credits
}

// tipState reads what became of a debited tip, inside tx when one is given.
func (s *service) tipState(ctx context.Context, tx *gorm.DB, tip tipPostings) (tipStatus, error) {
	if len(tip.credits) == 0 {
		return tipCredited, nil
	}
	find := func(userID uuid.UUID, kind enums.LedgerEntryKind, reference string) (bool, error) {
		if tx == nil {
			entry, err := s.ledger.FindByReference(ctx, userID, kind, reference)
			return entry != nil, err
		}
		entry, err := s.ledger.FindByReferenceTx(ctx, tx, userID, kind, reference, false)
		return entry != nil, err
	}

	first := tip.credits[0]
	credited, err := find(first.UserID, first.Kind, tip.reference)
	if err != nil {
		return tipPending, err
	}
	if credited {
		return tipCredited, nil
	}
	reversed, err := find(tip.sender, enums.LedgerEntryAdjustment, tip.reversalReference())
	if err != nil {
		return tipPending, err
	}
	if reversed {
		return tipReversed, nil
	}
	return tipPending, nil
}

// tipGuard lets a credit or reversal run only while the tip is pending. It
// locks the sender's debit entry first, so the credit and the reversal of
// one tip never decide concurrently.
func (s *service) tipGuard(tip tipPostings, seen *tipStatus) wallets.Guard {
	return func(ctx context.Context, tx *gorm.DB) (bool, error) {
		if _, err := s.ledger.FindByReferenceTx(ctx, tx, tip.sender, enums.LedgerEntryTipSent, tip.reference, true); err != nil {
			return false, err
		}
		state, err := s.tipState(ctx, tx, tip)
		if err != nil {
			return false, err
		}
		*seen = state
		return state == tipPending, nil
	}
}

// replayedTip reports a tip that already completed, with the sender's
// balances as they are now rather than as they were after the debit.
func (s *service) replayedTip(ctx context.Context, result *TipResult, sender uuid.UUID) *TipResult {
	result.Outcome = OutcomeAlreadyProcessed
	if balances := s.currentBalances(ctx, sender); balances != nil {
		result.Balances = *balances
	}
	return result
}

func (s *service) currentBalances(ctx context.Context, userID uuid.UUID) *wallets.Balances {
	if s.wallets == nil {
		return nil
	}
	view, err := s.wallets.Get(ctx, userID)
	if err != nil || view == nil {
		if err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "read wallet for replay failed")
		}
		return nil
	}
	return &wallets.Balances{Available: view.AvailableBalance, Held: view.HeldBalance, Total: view.Balance}
}

func tipWasReversed(reference string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "tip was reversed; retry with a new reference").
		WithDetails(map[string]any{"reference": reference})
}
