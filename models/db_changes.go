package models

import "time"

// Change actions recorded in db_changes
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// DBChange is the change log the realtime monitor polls. Payload holds the JSON
// row after the change, or before it for deletes.
type DBChange struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TableName  string    `gorm:"type:varchar(50);not null;index:idx_table_action" json:"table_name"`
	RecordID   uint      `gorm:"not null" json:"record_id"`
	ActionType string    `gorm:"type:varchar(10);not null;index:idx_table_action" json:"action_type"`
	Payload    string    `gorm:"type:text" json:"payload"`
	ChangedAt  time.Time `gorm:"not null;index" json:"changed_at"`
	Processed  bool      `gorm:"default:false;index:idx_processed" json:"processed"`
}

// Versioned is implemented by every entity the realtime layer can reconcile.
type Versioned interface {
	GetID() uint
	GetVersion() uint64
}
