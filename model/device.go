package model

import "time"

type Device struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	DeviceID string `gorm:"column:device_id;size:36;uniqueIndex;not null" json:"device_id"`
	Name     string `gorm:"column:name;size:255;not null" json:"name"`

	SecretHash string `gorm:"column:secret_hash;size:128;not null" json:"-"`

	IsActive bool `gorm:"column:is_active;not null;default:true" json:"is_active"`

	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
}

// TableName returns the database table name.
func (Device) TableName() string {
	return "device"
}
