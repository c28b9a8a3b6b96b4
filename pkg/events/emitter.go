// Package events handles event emission for ask, bid, and relationship
// lifecycle changes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes lifecycle events to Kafka and notifies local watchers.
// Emission is best-effort after commit; a publish failure is logged, never
// surfaced to the caller.
type Emitter struct {
	producer *kafka.Producer
	hub      *Hub
	origin   string
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter. origin names this instance so the
// cross-instance consumer can tell its own events apart.
func NewEmitter(producer *kafka.Producer, hub *Hub, origin string, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		hub:      hub,
		origin:   origin,
		logger:   logger,
	}
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, askID, actorID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Error("Failed to marshal event payload")
		return
	}

	event := &kafka.AuctionEvent{
		EventType:     string(eventType),
		SchemaVersion: SchemaVersion,
		AskID:         askID,
		ActorID:       actorID,
		Origin:        e.origin,
		Data:          data,
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now().UTC(),
	}

	if e.hub != nil {
		e.hub.Notify(event)
	}

	if e.producer == nil {
		return
	}
	if err := e.producer.PublishAuctionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"ask_id":     askID,
		}).Error("Failed to publish event")
	}
}

// EmitAskCreated emits an ask.created event
func (e *Emitter) EmitAskCreated(ctx context.Context, ask *models.Ask) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAskCreated")
	defer span.End()

	e.emit(ctx, EventTypeAskCreated, ask.ID, ask.OwnerID, askPayload(ask))
}

// EmitAskExtended emits an ask.extended event after an anti-snipe extension
func (e *Emitter) EmitAskExtended(ctx context.Context, askID string, previousEnd, newEnd time.Time, triggerBidID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAskExtended")
	defer span.End()

	e.emit(ctx, EventTypeAskExtended, askID, "", ExtensionPayload{
		AskID:         askID,
		PreviousEndAt: previousEnd,
		NewEndAt:      newEnd,
		TriggerBidID:  triggerBidID,
	})
}

// EmitAskResolved emits an ask.resolved event when a bid is accepted
func (e *Emitter) EmitAskResolved(ctx context.Context, ask *models.Ask, actorID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAskResolved")
	defer span.End()

	e.emit(ctx, EventTypeAskResolved, ask.ID, actorID, askPayload(ask))
}

// EmitAskExpired emits an ask.expired event
func (e *Emitter) EmitAskExpired(ctx context.Context, ask *models.Ask) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAskExpired")
	defer span.End()

	e.emit(ctx, EventTypeAskExpired, ask.ID, "", askPayload(ask))
}

// EmitAskArchived emits an ask.archived event
func (e *Emitter) EmitAskArchived(ctx context.Context, ask *models.Ask, actorID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitAskArchived")
	defer span.End()

	e.emit(ctx, EventTypeAskArchived, ask.ID, actorID, askPayload(ask))
}

// EmitBidPlaced emits a bid.placed event
func (e *Emitter) EmitBidPlaced(ctx context.Context, bid *models.Bid) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBidPlaced")
	defer span.End()

	e.emit(ctx, EventTypeBidPlaced, bid.AskID, bid.BidderID, bidPayload(bid))
}

// EmitBidAccepted emits a bid.accepted event
func (e *Emitter) EmitBidAccepted(ctx context.Context, bid *models.Bid, actorID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBidAccepted")
	defer span.End()

	e.emit(ctx, EventTypeBidAccepted, bid.AskID, actorID, bidPayload(bid))
}

// EmitBidsRejected emits a bid.rejected event per losing bid
func (e *Emitter) EmitBidsRejected(ctx context.Context, bids []models.Bid, actorID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBidsRejected")
	defer span.End()

	for i := range bids {
		e.emit(ctx, EventTypeBidRejected, bids[i].AskID, actorID, bidPayload(&bids[i]))
	}
}

// EmitRelationshipFormed emits a relationship.formed event
func (e *Emitter) EmitRelationshipFormed(ctx context.Context, rel *models.Relationship) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipFormed")
	defer span.End()

	e.emit(ctx, EventTypeRelationshipFormed, rel.AskID, "", relationshipPayload(rel))
}

// EmitRelationshipExpired emits a relationship.expired event
func (e *Emitter) EmitRelationshipExpired(ctx context.Context, rel *models.Relationship) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipExpired")
	defer span.End()

	e.emit(ctx, EventTypeRelationshipExpired, rel.AskID, "", relationshipPayload(rel))
}

// EmitContactRevealed emits a contact.revealed event. The payload carries
// identifiers only, never the contact details themselves.
func (e *Emitter) EmitContactRevealed(ctx context.Context, askID, bidID, ownerID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitContactRevealed")
	defer span.End()

	e.emit(ctx, EventTypeContactRevealed, askID, ownerID, map[string]string{
		"ask_id": askID,
		"bid_id": bidID,
	})
}

func askPayload(ask *models.Ask) AskPayload {
	return AskPayload{
		AskID:      ask.ID,
		OwnerID:    ask.OwnerID,
		CostType:   ask.CostType,
		CostAmount: ask.CostAmount,
		Status:     ask.Status,
		EndsAt:     ask.EndsAt,
	}
}

func bidPayload(bid *models.Bid) BidPayload {
	return BidPayload{
		BidID:    bid.ID,
		AskID:    bid.AskID,
		BidderID: bid.BidderID,
		Amount:   bid.Amount,
		Status:   bid.Status,
	}
}

func relationshipPayload(rel *models.Relationship) RelationshipPayload {
	return RelationshipPayload{
		RelationshipID: rel.ID,
		Code:           rel.Code,
		AskID:          rel.AskID,
		BidID:          rel.BidID,
		RequesterID:    rel.RequesterID,
		ProviderID:     rel.ProviderID,
	}
}
