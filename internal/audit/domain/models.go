// Package domain contains the append-only audit trail models.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is one append-only record of a billing action.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType  string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID    string            `json:"actor_id" gorm:"type:text"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	TargetType string            `json:"target_type" gorm:"type:text;not null"`
	TargetID   string            `json:"target_id" gorm:"type:text;index"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Service records billing actions. Implementations must never fail the
// business transaction; callers ignore the returned error after logging.
type Service interface {
	AuditLog(ctx context.Context, actorType, actorID, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, action string, limit int) ([]AuditLog, error)
}
