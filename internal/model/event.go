package model

import "time"

type EventName struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(40);uniqueIndex;not null"`
}

func (EventName) TableName() string { return "event_names" }

// Event is an audit entry appended by business operations.
type Event struct {
	ID          int64 `gorm:"primaryKey"`
	EventNameID int64 `gorm:"not null;index"`
	UserID      int64 `gorm:"not null;index"`
	Description string
	CreatedAt   time.Time `gorm:"index"`
}

func (Event) TableName() string { return "events" }
