package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/retailops/incidentd/internal/actorcontext"
	auditdomain "github.com/retailops/incidentd/internal/audit/domain"
	"github.com/retailops/incidentd/internal/audit/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) auditdomain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc := setupAuditService(t)

	err := svc.AuditLog(context.Background(), "system", nil, "  ", "incident", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestAuditLogMasksSensitiveMetadata(t *testing.T) {
	svc := setupAuditService(t)
	ctx := context.Background()

	require.NoError(t, svc.AuditLog(ctx, "system", nil, "integration.configured", "integration", nil, map[string]any{
		"api_key": "sk_live_abcdef123456",
		"note":    "freezer vendor webhook",
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "sk_live_****3456", entry.Metadata["api_key"])
	assert.Equal(t, "freezer vendor webhook", entry.Metadata["note"])
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc := setupAuditService(t)
	ctx := actorcontext.WithActor(context.Background(), "user", "1234")

	require.NoError(t, svc.AuditLog(ctx, "", nil, "incident.transitioned", "incident", nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "user", resp.AuditLogs[0].ActorType)
	require.NotNil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "1234", *resp.AuditLogs[0].ActorID)
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc := setupAuditService(t)

	require.NoError(t, svc.AuditLog(context.Background(), "", nil, "incident.sla_sweep.completed", "incident", nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestListFiltersByAction(t *testing.T) {
	svc := setupAuditService(t)
	ctx := context.Background()

	require.NoError(t, svc.AuditLog(ctx, "system", nil, "incident.created", "incident", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, "system", nil, "incident.assigned", "incident", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "incident.created"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "incident.created", resp.AuditLogs[0].Action)
}

func TestListRejectsInvalidTimeRange(t *testing.T) {
	svc := setupAuditService(t)

	later := time.Now().UTC().Add(time.Hour)
	earlier := later.Add(-2 * time.Hour)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{
		StartAt: &later,
		EndAt:   &earlier,
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
