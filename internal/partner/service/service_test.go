package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/clock"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopAuditService struct{}

func (noopAuditService) AuditLog(context.Context, string, string, string, string, string, map[string]any) error {
	return nil
}

func (noopAuditService) List(context.Context, string, int) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

func setupPartner(t *testing.T) partnerdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&partnerdomain.Partner{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		AuditSvc: noopAuditService{},
	})
}

func TestPartnerLifecycle(t *testing.T) {
	svc := setupPartner(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, partnerdomain.CreateRequest{Name: "  Horizon Travel  ", Email: "ops@horizon.example"})
	require.NoError(t, err)
	assert.Equal(t, "Horizon Travel", created.Name)
	assert.Equal(t, partnerdomain.PartnerStatusActive, created.Status)

	got, err := svc.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	suspended, err := svc.SetStatus(ctx, created.ID.String(), partnerdomain.PartnerStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, partnerdomain.PartnerStatusSuspended, suspended.Status)

	active, err := svc.List(ctx, partnerdomain.ListRequest{Status: partnerdomain.PartnerStatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, partnerdomain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPartnerValidation(t *testing.T) {
	svc := setupPartner(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, partnerdomain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, partnerdomain.ErrInvalidName)

	_, err = svc.Get(ctx, "not-a-snowflake")
	assert.ErrorIs(t, err, partnerdomain.ErrInvalidPartner)

	missing, err := svc.Get(ctx, "123456789")
	assert.ErrorIs(t, err, partnerdomain.ErrNotFound)
	assert.Nil(t, missing)

	_, err = svc.SetStatus(ctx, "123456789", partnerdomain.PartnerStatusSuspended)
	assert.ErrorIs(t, err, partnerdomain.ErrNotFound)

	created, err := svc.Create(ctx, partnerdomain.CreateRequest{Name: "Nomad Tours"})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, created.ID.String(), "RETIRED")
	assert.ErrorIs(t, err, partnerdomain.ErrInvalidStatus)
}
