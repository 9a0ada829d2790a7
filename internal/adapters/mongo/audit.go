package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records every committed transition for the back office. Best
// effort: a failed audit write is logged but never fails the transition.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("reservation_audit"),
		logger: logger,
	}
}

type AuditEntry struct {
	ID            uuid.UUID `bson:"_id"`
	Action        string    `bson:"action"`
	ReservationID uuid.UUID `bson:"reservation_id"`
	GuestID       uuid.UUID `bson:"guest_id"`
	Principal     string    `bson:"principal"`
	Timestamp     time.Time `bson:"timestamp"`
	Data          bson.M    `bson:"data"`
}

func (a *AuditLogger) LogTransition(ctx context.Context, action, principal string, res domain.Reservation) {
	entry := AuditEntry{
		ID:            uuid.New(),
		Action:        action,
		ReservationID: res.ID,
		GuestID:       res.GuestID,
		Principal:     principal,
		Timestamp:     time.Now().UTC(),
		Data: bson.M{
			"status":       string(res.Status),
			"room_id":      res.RoomID,
			"check_in":     res.Stay.CheckIn.Format("2006-01-02"),
			"check_out":    res.Stay.CheckOut.Format("2006-01-02"),
			"guest_count":  res.GuestCount,
			"total_amount": res.TotalAmount,
		},
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithError(err).WithField("reservation_id", res.ID).Error("failed to insert audit entry")
	}
}
