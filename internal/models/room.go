package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

type RoomKind string

const (
	KindPlain      RoomKind = "plain"
	KindTranslated RoomKind = "translated"
)

type Role string

const (
	RoleWriter   Role = "writer"
	RoleObserver Role = "observer"
)

// MaxWriters is the hard cap on writer-role members per room. The turn
// protocol is strictly two-writer; observers are unlimited.
const MaxWriters = 2

// Member is a participant inside a room. Members are ephemeral: they live
// only in the room's member map and are never persisted once removed.
type Member struct {
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// MemberMap stores room membership as a jsonb column.
type MemberMap map[string]Member

func (m MemberMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal members: %w", err)
	}
	return string(b), nil
}

func (m *MemberMap) Scan(src any) error {
	if src == nil {
		*m = MemberMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported member map source type %T", src)
	}
	return json.Unmarshal(b, m)
}

// StringList stores the finalized transcript as a jsonb column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported string list source type %T", src)
	}
	return json.Unmarshal(b, l)
}

// Room is the unit of collaboration. The copy in the hot cache is
// authoritative while the room has members; the rooms table is the source of
// truth for cold rooms and across restarts.
type Room struct {
	ID           string   `json:"id" gorm:"type:char(27);primaryKey"`
	Name         string   `json:"name" gorm:"type:text;not null"`
	PasswordHash string   `json:"-" gorm:"type:text"`
	HasPassword  bool     `json:"hasPassword"`
	Kind         RoomKind `json:"kind" gorm:"type:varchar(20);not null"`

	Members        MemberMap `json:"members" gorm:"type:jsonb"`
	ActiveWriterID string    `json:"activeWriterId" gorm:"type:text"`

	ActiveBuffer          string `json:"activeBuffer" gorm:"type:text"`
	InactiveBuffer        string `json:"inactiveBuffer" gorm:"type:text"`
	ActiveBufferVersion   int64  `json:"activeBufferVersion"`
	InactiveBufferVersion int64  `json:"inactiveBufferVersion"`

	FinalizedLog        StringList `json:"finalizedLog" gorm:"type:jsonb"`
	LastProcessedPrefix string     `json:"lastProcessedPrefix" gorm:"type:text"`
	TranslationEnabled  bool       `json:"translationEnabled"`
	TranslationInFlight bool       `json:"translationInFlight"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate assigns a KSUID so room ids sort by creation time.
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = ksuid.New().String()
	}
	return nil
}

// WriterCount returns the number of members currently holding the writer role.
func (r *Room) WriterCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Role == RoleWriter {
			n++
		}
	}
	return n
}

// ObserverCount returns the number of observer-role members.
func (r *Room) ObserverCount() int {
	n := 0
	for _, m := range r.Members {
		if m.Role == RoleObserver {
			n++
		}
	}
	return n
}

// OpponentWriterID returns the id of the writer other than callerID, if one
// exists.
func (r *Room) OpponentWriterID(callerID string) (string, bool) {
	for id, m := range r.Members {
		if m.Role == RoleWriter && id != callerID {
			return id, true
		}
	}
	return "", false
}

// Summary is the lobby view of a room.
type Summary struct {
	RoomID        string    `json:"roomId"`
	Name          string    `json:"name"`
	HasPassword   bool      `json:"hasPassword"`
	CreatedAt     time.Time `json:"createdAt"`
	WriterCount   int       `json:"writerCount"`
	ObserverCount int       `json:"observerCount"`
	Kind          RoomKind  `json:"kind"`
}

// Summarize builds the lobby summary from the room's current state.
func (r *Room) Summarize() Summary {
	return Summary{
		RoomID:        r.ID,
		Name:          r.Name,
		HasPassword:   r.HasPassword,
		CreatedAt:     r.CreatedAt,
		WriterCount:   r.WriterCount(),
		ObserverCount: r.ObserverCount(),
		Kind:          r.Kind,
	}
}

// State is the snapshot broadcast to room participants on every change.
type State struct {
	Name                string     `json:"name"`
	Members             MemberMap  `json:"members"`
	FinalizedLog        StringList `json:"finalizedLog"`
	ActiveBuffer        string     `json:"activeBuffer"`
	InactiveBuffer      string     `json:"inactiveBuffer"`
	ActiveWriterID      string     `json:"activeWriterId"`
	TranslationEnabled  bool       `json:"translationEnabled"`
	TranslationInFlight bool       `json:"translationInFlight"`
	LastProcessedPrefix string     `json:"lastProcessedPrefix"`
	Kind                RoomKind   `json:"kind"`
}

// Snapshot copies the broadcast-visible fields. Maps and slices are copied so
// the snapshot stays stable after the room lock is released.
func (r *Room) Snapshot() State {
	members := make(MemberMap, len(r.Members))
	for id, m := range r.Members {
		members[id] = m
	}
	log := make(StringList, len(r.FinalizedLog))
	copy(log, r.FinalizedLog)
	return State{
		Name:                r.Name,
		Members:             members,
		FinalizedLog:        log,
		ActiveBuffer:        r.ActiveBuffer,
		InactiveBuffer:      r.InactiveBuffer,
		ActiveWriterID:      r.ActiveWriterID,
		TranslationEnabled:  r.TranslationEnabled,
		TranslationInFlight: r.TranslationInFlight,
		LastProcessedPrefix: r.LastProcessedPrefix,
		Kind:                r.Kind,
	}
}
