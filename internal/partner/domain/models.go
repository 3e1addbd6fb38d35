// Package domain contains persistence models for partners.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PartnerStatus represents partner lifecycle states.
type PartnerStatus string

const (
	PartnerStatusActive    PartnerStatus = "ACTIVE"
	PartnerStatusSuspended PartnerStatus = "SUSPENDED"
)

// Partner is a B2B agent or reseller entitled to commission on the
// bookings it generates. The row doubles as the lock anchor for
// structure creation and payout batching.
type Partner struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	Email     string        `json:"email" gorm:"type:text"`
	Status    PartnerStatus `json:"status" gorm:"type:text;not null;default:'ACTIVE'"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Partner) TableName() string { return "partners" }
