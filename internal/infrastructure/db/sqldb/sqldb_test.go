package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := Connect(context.Background(), Config{Driver: DriverSQLite, DSN: dsn, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	t.Cleanup(func() { _ = Close(conn) })
	return conn
}

func TestConnect_RejectsUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: DriverSQLite})
	require.Error(t, err)
}

func TestPinger_Ping(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, NewPinger(conn).Ping(context.Background()))
}

func TestMigrate_CreatesCompositeIndex(t *testing.T) {
	conn := newTestDB(t)
	require.True(t, conn.Migrator().HasIndex(&userRow{}, "idx_users_role_username"))
	require.True(t, conn.Migrator().HasTable(&sessionRow{}))
}
