package auth_test

import (
	"testing"

	"github.com/collabflow/collabflow-cli/auth"
	"github.com/collabflow/collabflow-cli/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMemoryStore(t *testing.T) {
	store := auth.NewMemoryStore()

	rec, err := store.GetTokenRecord()
	require.NoError(t, err)
	assert.Nil(t, rec)

	in := &db.Token{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.UpsertTokenRecord(in))
	in.AccessToken = "mutated"

	rec, err = store.GetTokenRecord()
	require.NoError(t, err)
	assert.Equal(t, "a", rec.AccessToken, "store keeps its own copy")

	require.NoError(t, store.ClearTokenRecord())
	rec, err = store.GetTokenRecord()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRepoStorer_PersistsAcrossSessions(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	storer := auth.NewRepoStorer(db.NewTokenRepository(gdb))
	first := auth.NewSession(storer)
	first.SetTokens("access-1", "refresh-1", "carol")

	second := auth.NewSession(storer)
	assert.Equal(t, "access-1", second.AccessToken())
	assert.Equal(t, "refresh-1", second.RefreshCredential())
	assert.Equal(t, "carol", second.Username())

	second.Clear()
	third := auth.NewSession(storer)
	assert.Empty(t, third.AccessToken())
}
