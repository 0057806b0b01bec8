package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harithebeast/multimodal-ai/internal/shared"
	"github.com/redis/go-redis/v9"
)

// departureTTL keeps an empty room around briefly so a reconnecting
// participant lands back in the same room.
const departureTTL = 60 * time.Second

type Room struct {
	Name        string    `json:"name"`
	Participant string    `json:"participant"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomStore is the ephemeral room registry backed by redis.
type RoomStore struct {
	redis *redis.Client
}

func NewRoomStore(redisClient *redis.Client) *RoomStore {
	return &RoomStore{redis: redisClient}
}

func roomKey(name string) string { return "room:" + name }

func (s *RoomStore) Create(ctx context.Context, room *Room) error {
	if s.redis == nil {
		return nil
	}
	room.CreatedAt = time.Now()
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, roomKey(room.Name), data, departureTTL).Err()
}

func (s *RoomStore) Get(ctx context.Context, name string) (*Room, error) {
	if s.redis == nil {
		return nil, shared.ErrNotFound
	}
	data, err := s.redis.Get(ctx, roomKey(name)).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Touch renews the departure window while a participant is connected.
func (s *RoomStore) Touch(ctx context.Context, name string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Expire(ctx, roomKey(name), departureTTL).Err()
}

func (s *RoomStore) Delete(ctx context.Context, name string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, roomKey(name)).Err()
}
