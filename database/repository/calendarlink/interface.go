// File: database/repository/calendarlink/interface.go
package calendarLinkRepo

import (
	"context"
	"errors"

	"creatorhub/database"
	"creatorhub/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("calendar connection: not found")

// ConnectionRepository stores the external calendars each creator connected.
type ConnectionRepository interface {
	Upsert(ctx context.Context, conn *models.CalendarConnection) error
	Get(ctx context.Context, creatorID, provider string) (*models.CalendarConnection, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.CalendarConnection, error)
	UpdateToken(ctx context.Context, creatorID, provider, accessToken, refreshToken string, expiry int64) error
	EnsureIndexes(ctx context.Context) error
}

type mongoConnectionRepo struct {
	coll *mongo.Collection
}

// NewMongoConnectionRepo constructs a MongoDB ConnectionRepository.
func NewMongoConnectionRepo() ConnectionRepository {
	return &mongoConnectionRepo{coll: database.DB().Collection("calendar_connections")}
}
