package model

import "time"

// ClientRegistration identifies a calling application (not an end user)
// permitted to use the API. Never hard-deleted, only deactivated.
type ClientRegistration struct {
	ClientUUID  string     `json:"client_uuid" gorm:"primaryKey;column:client_uuid"`
	ClientType  string     `json:"client_type"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	SourceIP    string     `json:"source_ip,omitempty" gorm:"column:source_ip"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (ClientRegistration) TableName() string { return "client_registrations" }
