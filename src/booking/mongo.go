package booking

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bookingCollection = "booking"
	beaconCollection  = "beacon"
	profileCollection = "line_profiles"
)

// MongoRepository stores bookings, beacon check-ins and LINE profiles in MongoDB
type MongoRepository struct {
	client   *mongo.Client
	bookings *mongo.Collection
	beacons  *mongo.Collection
	profiles *mongo.Collection
}

// NewMongoRepository connects to uri and verifies the connection
func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	return &MongoRepository{
		client:   client,
		bookings: db.Collection(bookingCollection),
		beacons:  db.Collection(beaconCollection),
		profiles: db.Collection(profileCollection),
	}, nil
}

func (m *MongoRepository) Insert(ctx context.Context, b *model.Booking) error {
	if _, err := m.bookings.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (m *MongoRepository) ListActive(ctx context.Context, userID string) ([]model.Booking, error) {
	filter := bson.M{"userId": userID, "status": model.BookingBooked}
	opts := options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}})

	cur, err := m.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}

	var out []model.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

func (m *MongoRepository) Cancel(ctx context.Context, userID, eventID string) (*model.Booking, error) {
	filter := bson.M{"eventId": eventID, "userId": userID, "status": model.BookingBooked}
	update := bson.M{"$set": bson.M{"status": model.BookingCancelled}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var b model.Booking
	err := m.bookings.FindOneAndUpdate(ctx, filter, update, opts).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	return &b, nil
}

// CheckIn records a beacon entry, at most once per user per day.
// It reports whether a new record was written.
func (m *MongoRepository) CheckIn(ctx context.Context, c model.BeaconCheckin) (bool, error) {
	filter := bson.M{"userId": c.UserID, "year": c.Year, "month": c.Month, "day": c.Day}
	update := bson.M{"$setOnInsert": c}

	res, err := m.beacons.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to record beacon check-in: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// SaveProfile upserts a LINE profile by user id
func (m *MongoRepository) SaveProfile(ctx context.Context, p model.Profile) error {
	_, err := m.profiles.UpdateOne(ctx,
		bson.M{"userId": p.UserID},
		bson.M{"$set": p},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
