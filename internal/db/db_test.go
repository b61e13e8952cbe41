package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/logger"
	"github.com/example/helpdesk/internal/models"
)

func TestMigrate_DisplayIDIsUnique(t *testing.T) {
	database, err := Open(sqlite.Open("file::memory:"), logger.Discard())
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, Migrate(database))

	require.NoError(t, database.Create(&models.Ticket{DisplayID: "TKT-1", Title: "first"}).Error)
	err = database.Create(&models.Ticket{DisplayID: "TKT-1", Title: "second"}).Error

	require.Error(t, err)
	assert.True(t, apperr.IsDuplicateKey(err))
}
