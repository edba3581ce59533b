// File: database/repository/calendarlink/memory.go
package calendarLinkRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"creatorhub/models"
)

// MemoryConnectionRepo is an in-process ConnectionRepository.
type MemoryConnectionRepo struct {
	mu    sync.RWMutex
	conns map[string]models.CalendarConnection
}

func NewMemoryConnectionRepo() *MemoryConnectionRepo {
	return &MemoryConnectionRepo{conns: make(map[string]models.CalendarConnection)}
}

func key(creatorID, provider string) string { return creatorID + "/" + provider }

func (m *MemoryConnectionRepo) Upsert(_ context.Context, conn *models.CalendarConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	m.conns[key(conn.CreatorID, conn.Provider)] = *conn
	return nil
}

func (m *MemoryConnectionRepo) Get(_ context.Context, creatorID, provider string) (*models.CalendarConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[key(creatorID, provider)]
	if !ok {
		return nil, ErrNotFound
	}
	return &conn, nil
}

func (m *MemoryConnectionRepo) ListByCreator(_ context.Context, creatorID string) ([]models.CalendarConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CalendarConnection
	for _, conn := range m.conns {
		if conn.CreatorID == creatorID {
			out = append(out, conn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (m *MemoryConnectionRepo) UpdateToken(_ context.Context, creatorID, provider, accessToken, refreshToken string, expiry int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(creatorID, provider)
	conn, ok := m.conns[k]
	if !ok {
		return ErrNotFound
	}
	conn.AccessToken = accessToken
	if refreshToken != "" {
		conn.RefreshToken = refreshToken
	}
	conn.TokenExpiry = time.Unix(expiry, 0).UTC()
	m.conns[k] = conn
	return nil
}

func (m *MemoryConnectionRepo) EnsureIndexes(context.Context) error { return nil }
