package ledgerexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/pkg/enums"
	"github.com/angelmondragon/walletcore/pkg/logger"
	"github.com/angelmondragon/walletcore/pkg/outbox"
	"github.com/angelmondragon/walletcore/pkg/outbox/payloads"
	"github.com/angelmondragon/walletcore/pkg/outbox/registry"
)

// ConsumerName scopes the processed-event marks of this worker.
const ConsumerName = "ledger-export"

type rowWriter interface {
	Insert(ctx context.Context, row Row) error
}

type idempotencyChecker interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ServiceParams wires the export worker.
type ServiceParams struct {
	Subscription *gcppubsub.Subscriber
	Writer       rowWriter
	Idempotency  idempotencyChecker
	Logger       *logger.Logger
}

// Service copies ledger_entry_recorded events from Pub/Sub into BigQuery.
// Redelivered messages are skipped through the Redis idempotency manager.
type Service struct {
	subscription *gcppubsub.Subscriber
	writer       rowWriter
	manager      idempotencyChecker
	logg         *logger.Logger
	decoders     *registry.Decoders[payloads.LedgerEntryRecordedEvent]
	now          func() time.Time
}

// newLedgerDecoders registers every envelope version the export understands.
func newLedgerDecoders() *registry.Decoders[payloads.LedgerEntryRecordedEvent] {
	return registry.NewDecoders[payloads.LedgerEntryRecordedEvent](enums.EventLedgerEntryRecorded).JSON(1)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscription == nil {
		return nil, errors.New("ledger export subscription is required")
	}
	if params.Writer == nil {
		return nil, errors.New("ledger row writer is required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: params.Subscription,
		writer:       params.Writer,
		manager:      params.Idempotency,
		logg:         params.Logger,
		decoders:     newLedgerDecoders(),
		now:          time.Now,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := s.logg.WithFields(ctx, fields)

	eventType := strings.TrimSpace(msg.Attributes["event_type"])
	if eventType != string(enums.EventLedgerEntryRecorded) {
		fields["event_type"] = eventType
		s.logg.Debug(s.logg.WithFields(ctx, fields), "skipping non-ledger event")
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid ledger envelope")
		return processResult{}
	}

	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	parsedID, err := uuid.Parse(eventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}
	fields["event_id"] = eventID
	logCtx = s.logg.WithFields(ctx, fields)

	row, err := s.buildRow(envelope, eventID)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid ledger payload")
		return processResult{}
	}
	logCtx = s.logg.WithReference(logCtx, row.Reference)

	already, err := s.manager.CheckAndMark(logCtx, parsedID.String())
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "ledger event already exported")
		return processResult{}
	}

	if err := s.writer.Insert(logCtx, row); err != nil {
		s.logg.Error(logCtx, "ledger export failed", err)
		if delErr := s.manager.Delete(logCtx, parsedID.String()); delErr != nil {
			s.logg.Error(logCtx, "idempotency release failed", delErr)
		}
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "ledger entry exported")
	return processResult{}
}

func (s *Service) buildRow(envelope outbox.PayloadEnvelope, eventID string) (Row, error) {
	event, err := s.decoders.Decode(envelope.Version, envelope.Data)
	if err != nil {
		return Row{}, err
	}
	if event.EntryID == uuid.Nil || event.UserID == uuid.Nil {
		return Row{}, errors.New("entry_id and user_id are required")
	}
	if !event.EntryKind.IsValid() {
		return Row{}, fmt.Errorf("entry_kind %q invalid", event.EntryKind)
	}

	occurredAt := event.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = envelope.OccurredAt
	}

	row := Row{
		EventID:          eventID,
		EntryID:          event.EntryID.String(),
		UserID:           event.UserID.String(),
		EntryKind:        string(event.EntryKind),
		Status:           string(event.Status),
		AmountKobo:       event.Amount,
		WalletEffectKobo: event.WalletEffect,
		HeldEffectKobo:   event.HeldEffect,
		Reference:        event.Reference,
		AvailableKobo:    event.AvailableBalance,
		HeldKobo:         event.HeldBalance,
		BalanceKobo:      event.Balance,
		OccurredAt:       occurredAt.UTC(),
		ExportedAt:       s.now().UTC(),
		Payload:          nullJSON(envelope.Data),
	}
	if event.CounterpartyID != nil {
		row.CounterpartyID = cbigquery.NullString{StringVal: event.CounterpartyID.String(), Valid: true}
	}
	return row, nil
}
