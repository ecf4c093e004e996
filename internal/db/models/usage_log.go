package models

import "time"

// UsageLog records one admitted tool call. Rows are append-only and only ever
// read in aggregate (count since the start of the UTC day); the composite
// index keeps that query cheap.
type UsageLog struct {
	ID        string    `gorm:"primaryKey"` // UUID
	UserID    string    `gorm:"index:idx_user_timestamp"`
	ToolName  string
	Timestamp time.Time `gorm:"index:idx_user_timestamp"`
}
