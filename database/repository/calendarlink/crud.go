// File: database/repository/calendarlink/crud.go
package calendarLinkRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"creatorhub/models"
)

// Upsert stores one connection per (creator, provider), replacing an older one.
func (r *mongoConnectionRepo) Upsert(ctx context.Context, conn *models.CalendarConnection) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	filter := bson.M{"creatorId": conn.CreatorID, "provider": conn.Provider}
	if _, err := r.coll.ReplaceOne(ctx, filter, conn, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert calendar connection: %w", err)
	}
	return nil
}

func (r *mongoConnectionRepo) Get(ctx context.Context, creatorID, provider string) (*models.CalendarConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var conn models.CalendarConnection
	err := r.coll.FindOne(ctx, bson.M{"creatorId": creatorID, "provider": provider}).Decode(&conn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar connection: %w", err)
	}
	return &conn, nil
}

func (r *mongoConnectionRepo) ListByCreator(ctx context.Context, creatorID string) ([]models.CalendarConnection, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"creatorId": creatorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar connections: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.CalendarConnection
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode calendar connections: %w", err)
	}
	return out, nil
}

// UpdateToken persists a refreshed OAuth token.
func (r *mongoConnectionRepo) UpdateToken(ctx context.Context, creatorID, provider, accessToken, refreshToken string, expiry int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"accessToken": accessToken,
		"tokenExpiry": time.Unix(expiry, 0).UTC(),
		"updatedAt":   time.Now().UTC(),
	}
	if refreshToken != "" {
		set["refreshToken"] = refreshToken
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"creatorId": creatorID, "provider": provider}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the unique (creatorId, provider) index.
func (r *mongoConnectionRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "creatorId", Value: 1}, {Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_creator_provider"),
	})
	if err != nil {
		return fmt.Errorf("failed to create calendar connection indexes: %w", err)
	}
	return nil
}
