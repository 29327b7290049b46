package references

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"returns-notifier/internal/common/database"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var contractorColumns = []string{"id", "type", "name", "full_name", "email", "mobile", "seller_id", "locale"}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func setupDB(t *testing.T) (*database.PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewPostgresFromDB(db), mock
}

func expectContractor(mock sqlmock.Sqlmock, id int64) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(contractorQuery)).WithArgs(id)
}

// ==========================
// Repository Tests
// ==========================

func TestRepository_GetClient_LoadsAndCaches(t *testing.T) {
	pg, mock := setupDB(t)
	mr, cache := setupRedis(t)
	repo := NewRepository(pg, cache, 5*time.Minute, logger.NewTestLogger(t))

	expectContractor(mock, 10).WillReturnRows(sqlmock.NewRows(contractorColumns).
		AddRow(10, 0, "acme", "Acme Ltd", "client@acme.test", "+15550100", 7, "ru"))

	client, err := repo.GetClient(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10), client.ID())
	assert.Equal(t, "Acme Ltd", client.DisplayName())
	assert.Equal(t, "acme", client.RawName())
	assert.True(t, client.IsCustomer())
	assert.True(t, client.BelongsTo(7))
	assert.Equal(t, "ru", client.Language())

	assert.True(t, mr.Exists("contractor:10"))
	assert.Equal(t, 5*time.Minute, mr.TTL("contractor:10"))

	// second call is served from cache
	again, err := repo.GetClient(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, client, again)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_NullableColumns(t *testing.T) {
	pg, mock := setupDB(t)
	repo := NewRepository(pg, nil, time.Minute, logger.NewNoOpLogger())

	expectContractor(mock, 3).WillReturnRows(sqlmock.NewRows(contractorColumns).
		AddRow(3, 1, "expert", nil, nil, nil, nil, nil))

	expert, err := repo.GetEmployee(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, expert.DisplayName())
	assert.Empty(t, expert.Email())
	assert.Empty(t, expert.Mobile())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CacheHitSkipsDatabase(t *testing.T) {
	pg, mock := setupDB(t)
	mr, cache := setupRedis(t)
	repo := NewRepository(pg, cache, time.Minute, logger.NewNoOpLogger())

	raw, _ := json.Marshal(&models.Contractor{ContractorID: 5, Kind: models.KindSeller, Name: "seller", FullName: "Seller Inc"})
	require.NoError(t, mr.Set("contractor:5", string(raw)))

	seller, err := repo.GetSeller(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Seller Inc", seller.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_NotFound(t *testing.T) {
	pg, mock := setupDB(t)
	repo := NewRepository(pg, nil, time.Minute, logger.NewNoOpLogger())

	expectContractor(mock, 99).WillReturnError(sql.ErrNoRows)

	seller, err := repo.GetSeller(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, seller)

	// non-positive ids never reach the database
	_, err = repo.GetEmployee(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DatabaseError(t *testing.T) {
	pg, mock := setupDB(t)
	repo := NewRepository(pg, nil, time.Minute, logger.NewNoOpLogger())

	expectContractor(mock, 4).WillReturnError(errors.New("connection refused"))

	_, err := repo.GetClient(context.Background(), 4)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRepository_CacheFailuresAreBypassed(t *testing.T) {
	pg, mock := setupDB(t)
	rdb, redisMock := redismock.NewClientMock()
	repo := NewRepository(pg, database.NewRedisFromClient(rdb), time.Minute, logger.NewNoOpLogger())

	redisMock.ExpectGet("contractor:8").SetErr(errors.New("redis down"))
	expectContractor(mock, 8).WillReturnRows(sqlmock.NewRows(contractorColumns).
		AddRow(8, 1, "creator", "Creator Name", "", "", 0, "en"))
	cached, _ := json.Marshal(&models.Contractor{ContractorID: 8, Kind: models.KindEmployee, Name: "creator", FullName: "Creator Name", Locale: "en"})
	redisMock.ExpectSet("contractor:8", cached, time.Minute).SetErr(errors.New("redis down"))

	creator, err := repo.GetEmployee(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "Creator Name", creator.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRepository_StatusName(t *testing.T) {
	repo := NewRepository(nil, nil, 0, logger.NewNoOpLogger())
	assert.Equal(t, "Pending", repo.StatusName(models.StatusPending))
	assert.Equal(t, "Unknown", repo.StatusName(models.StatusID(9)))
}
