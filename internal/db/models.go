package db

import (
	"time"

	"gorm.io/datatypes"
)

// Sex values stored for registered users.
const (
	SexFemale = "F"
	SexMale   = "M"
)

// User is a registered requester. The primary key is the external VK
// id, not a synthetic one. CityID 0 means the city is not known yet.
type User struct {
	ID        int64     `gorm:"primaryKey"`
	Age       int       `gorm:"not null"`
	Sex       string    `gorm:"size:1;not null"`
	CityID    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// BlacklistEntry records that a user blocked a candidate.
//
// Unique index on (user_id, blocked_id) makes AddToBlacklist
// idempotent under concurrent retries; ID preserves insertion order
// for the "remove last" operation.
type BlacklistEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_blocked,priority:1"`
	BlockedID int64     `gorm:"not null;uniqueIndex:idx_user_blocked,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// FavoriteUser is a favorited candidate, deduplicated across the whole
// store by the candidate's external id. Rows are immutable once
// created; re-favoriting the same candidate is a no-op here.
type FavoriteUser struct {
	TargetID  int64          `gorm:"primaryKey"`
	FirstName string         `gorm:"size:255;not null"`
	LastName  string         `gorm:"size:255;not null"`
	PhotoRefs datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

// FavoriteLink joins a requester to a FavoriteUser row, so many
// requesters can favorite the same candidate without duplicating
// candidate data. Unique per (user_id, target_id); ID preserves
// insertion order for listing and "remove last".
type FavoriteLink struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_target,priority:1"`
	TargetID  int64     `gorm:"not null;uniqueIndex:idx_user_target,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
