// Package logaudit stores the log lines services publish to the log queue and
// serves them back for inspection.
package logaudit

import "time"

type Entry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Service   string    `gorm:"type:varchar(50);not null;index" json:"service"`
	Level     string    `gorm:"type:varchar(10);not null;index" json:"level"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Entry) TableName() string {
	return "log_audit_entries"
}

func Models() []any {
	return []any{&Entry{}}
}
