package database

import "time"

// Host is a stored SSH endpoint that log tail sessions can target.
// Password, PrivateKey and Passphrase are Fernet-encrypted at rest and are
// never serialized back to API clients.
type Host struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Host     string `gorm:"not null" json:"host"`
	Port     int    `gorm:"not null;default:22" json:"port"`
	Username string `gorm:"not null" json:"username"`

	Password   string `json:"-"`
	PrivateKey string `json:"-"`
	Passphrase string `json:"-"`

	// ConnectTimeoutSec bounds the SSH handshake for this host. Zero means
	// the global default applies.
	ConnectTimeoutSec int `gorm:"default:0" json:"connect_timeout_sec"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
