package repository

import (
	"context"
	"errors"
	"fmt"

	"typeduet/internal/models"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a room id is malformed or absent from the
// rooms table.
var ErrNotFound = errors.New("room not found")

// RoomRepositoryImpl handles all database operations for rooms using GORM.
// The synchronizer declares the interface it needs; this type doesn't know
// about it.
type RoomRepositoryImpl struct {
	db *gorm.DB
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *gorm.DB) *RoomRepositoryImpl {
	return &RoomRepositoryImpl{db: db}
}

// Create inserts a new room. The KSUID is assigned in the BeforeCreate hook
// and returned as the room's identity.
func (r *RoomRepositoryImpl) Create(ctx context.Context, room *models.Room) (string, error) {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}
	return room.ID, nil
}

// Load retrieves a room by id. A malformed id is reported the same way as a
// missing row.
func (r *RoomRepositoryImpl) Load(ctx context.Context, id string) (*models.Room, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var room models.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	return &room, nil
}

// Replace overwrites the full stored document for a room, zero fields
// included. Identity and creation time are immutable.
func (r *RoomRepositoryImpl) Replace(ctx context.Context, id string, room *models.Room) error {
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", id).
		Select("*").
		Omit("id", "created_at").
		Updates(room)
	if res.Error != nil {
		return fmt.Errorf("failed to replace room: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete permanently removes a room.
func (r *RoomRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := ksuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res := r.db.WithContext(ctx).Delete(&models.Room{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete room: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExcept returns every room whose id is not in excludeIDs, loading only
// the fields the lobby needs. Member counts come from the stored member map,
// which is stale for rooms that are live in the hot cache; callers are
// expected to exclude those.
func (r *RoomRepositoryImpl) ListExcept(ctx context.Context, excludeIDs []string) ([]*models.Room, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Select("id", "name", "has_password", "created_at", "kind", "members")
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}

	var rooms []*models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// ResetAllMembershipAndBuffers clears membership, turn ownership, buffer
// versions and the in-flight guard on every room. Run once at startup to
// drop connection state left over from a prior process.
func (r *RoomRepositoryImpl) ResetAllMembershipAndBuffers(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("1 = 1").
		Updates(map[string]any{
			"members":                 "{}",
			"active_writer_id":        "",
			"active_buffer_version":   0,
			"inactive_buffer_version": 0,
			"translation_in_flight":   false,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset rooms: %w", res.Error)
	}
	return res.RowsAffected, nil
}
