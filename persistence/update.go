package persistence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/wfunc/marketgame/models"
)

// RetryPolicy bounds the load/mutate/save loop of UpdateRoom.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// OnConflict is called after every lost compare-and-swap.
	OnConflict func(roomID string, attempt int)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 10, BaseDelay: 2 * time.Millisecond}
}

// UpdateRoom loads the room, lets mutate change it and saves it with the
// version it was loaded at. On conflict the whole cycle runs again against
// the fresh record, so mutate must be a pure function of the room it gets.
// Errors returned by mutate are passed through unchanged.
func UpdateRoom(ctx context.Context, store RoomStore, roomID string, policy RetryPolicy, mutate func(room *models.Room) error) (*models.Room, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		room, version, err := store.Load(ctx, roomID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, models.Reject(models.ErrRoomNotFound, "%q", roomID)
		}
		if err != nil {
			return nil, fmt.Errorf("load room %s: %w", roomID, err)
		}

		if err := mutate(room); err != nil {
			return nil, err
		}

		newVersion, err := store.Save(ctx, room, version)
		if err == nil {
			room.Version = newVersion
			return room, nil
		}
		if errors.Is(err, ErrRecordNotFound) {
			return nil, models.Reject(models.ErrRoomNotFound, "%q", roomID)
		}
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("save room %s: %w", roomID, err)
		}

		if policy.OnConflict != nil {
			policy.OnConflict(roomID, attempt)
		}
		if attempt < attempts {
			if err := backoff(ctx, policy.BaseDelay, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, models.Reject(models.ErrConcurrentUpdateFailed, "room %s after %d attempts", roomID, attempts)
}

func backoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	delay := base*time.Duration(attempt) + time.Duration(rand.Int63n(int64(base)))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
