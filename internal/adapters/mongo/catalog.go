package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads rooms and room types published by the catalog
// service. This subsystem never writes them.
type CatalogRepository struct {
	rooms     *mongo.Collection
	roomTypes *mongo.Collection
	logger    observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		rooms:     db.Collection("rooms"),
		roomTypes: db.Collection("room_types"),
		logger:    logger,
	}
}

type roomDoc struct {
	ID          uuid.UUID `bson:"_id"`
	RoomTypeID  uuid.UUID `bson:"room_type_id"`
	Number      string    `bson:"number"`
	Accessible  bool      `bson:"accessible"`
	PetFriendly bool      `bson:"pet_friendly"`
	NonSmoking  bool      `bson:"non_smoking"`
}

type roomTypeDoc struct {
	ID          uuid.UUID `bson:"_id"`
	Name        string    `bson:"name"`
	NightlyRate int64     `bson:"nightly_rate"`
	Capacity    int       `bson:"capacity"`
}

func (c *CatalogRepository) Room(ctx context.Context, id uuid.UUID) (domain.Room, error) {
	var doc roomDoc
	err := c.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.Room{}, errors.Wrapf(domain.ErrNotFound, "room %s", id)
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to load room")
		return domain.Room{}, err
	}
	return domain.Room{
		ID:          doc.ID,
		RoomTypeID:  doc.RoomTypeID,
		Number:      doc.Number,
		Accessible:  doc.Accessible,
		PetFriendly: doc.PetFriendly,
		NonSmoking:  doc.NonSmoking,
	}, nil
}

func (c *CatalogRepository) RoomType(ctx context.Context, id uuid.UUID) (domain.RoomType, error) {
	var doc roomTypeDoc
	err := c.roomTypes.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.RoomType{}, errors.Wrapf(domain.ErrNotFound, "room type %s", id)
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to load room type")
		return domain.RoomType{}, err
	}
	return domain.RoomType{
		ID:          doc.ID,
		Name:        doc.Name,
		NightlyRate: doc.NightlyRate,
		Capacity:    doc.Capacity,
	}, nil
}
