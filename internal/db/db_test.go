package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"daily-prompt-backend/config"
	"daily-prompt-backend/internal/model"
)

func TestInit_SQLiteMigrates(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: "file:db_init?mode=memory&cache=shared"}

	gdb, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gdb.DB()
	defer sqlDB.Close()

	for _, m := range []interface{}{&model.Notification{}, &model.PushSubscription{}, &model.Post{}, &model.Friendship{}} {
		assert.True(t, gdb.Migrator().HasTable(m), "missing table for %T", m)
	}
	assert.True(t, gdb.Migrator().HasIndex(&model.Notification{}, "idx_notification_day"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
