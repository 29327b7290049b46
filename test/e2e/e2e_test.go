// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returns-notifier/internal/common/config"
	"returns-notifier/internal/common/database"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/i18n"
	"returns-notifier/internal/messaging"
	"returns-notifier/internal/models"
	"returns-notifier/internal/references"

	grn "returns-notifier/internal/workers/returns/goods-return-notification"
)

// Reference ids live in a high range so the seed never collides with real data.
const (
	e2eReseller int64 = 900001
	e2eClient   int64 = 900002
	e2eCreator  int64 = 900003
	e2eExpert   int64 = 900004
	e2eWatcher  int64 = 900005
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []messaging.EmailMessage
}

func (r *recordingEmail) SendEmail(_ context.Context, msg messaging.EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type recordingSNS struct {
	mu        sync.Mutex
	published []*sns.PublishInput
}

func (r *recordingSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, in)
	return &sns.PublishOutput{MessageId: aws.String("e2e")}, nil
}

type stack struct {
	pg         *database.PostgresClient
	redis      *database.RedisClient
	email      *recordingEmail
	sns        *recordingSNS
	dispatcher *grn.Dispatcher
}

func setupStack(t testing.TB) *stack {
	t.Helper()
	if os.Getenv("E2E") == "" {
		t.Skip("set E2E=1 with Postgres and Redis running to enable")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx := context.Background()
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { rdb.Close() })

	seed(t, pg, rdb)

	log := logger.NewTestLogger(t)
	bundle, err := i18n.NewBundle("en")
	require.NoError(t, err)

	s := &stack{pg: pg, redis: rdb, email: &recordingEmail{}, sns: &recordingSNS{}}
	sms := messaging.NewSMSNotifier(s.sns, bundle, messaging.SMSOptions{
		Enabled: true, SMSType: "Transactional", RatePerMinute: 60, Burst: 5,
	}, log)

	wcfg := grn.LoadConfig(cfg)
	s.dispatcher = grn.NewDispatcher(wcfg, grn.Dependencies{
		Lookup:     references.NewRepository(pg, rdb, time.Minute, log),
		Localizer:  bundle,
		Recipients: references.NewRecipients(pg, rdb, time.Minute, "noreply@returns.test", log),
		Email:      s.email,
		SMS:        sms,
	}, log)
	return s
}

// ==========================
// Database Tables Setup + Test Data
// ==========================

func seed(t testing.TB, pg *database.PostgresClient, rdb *database.RedisClient) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contractors (
			id BIGINT PRIMARY KEY,
			type INT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT,
			mobile TEXT,
			seller_id BIGINT,
			locale TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS employee_permissions (
			reseller_id BIGINT NOT NULL,
			employee_id BIGINT NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (reseller_id, employee_id, permission)
		)`,
		`DELETE FROM employee_permissions WHERE reseller_id = 900001`,
		`DELETE FROM contractors WHERE id BETWEEN 900001 AND 900005`,
		`INSERT INTO contractors (id, type, name, full_name, email, mobile, seller_id, locale) VALUES
			(900001, 2, 'seller', 'E2E Seller', 'seller@returns.test', NULL, NULL, 'en'),
			(900002, 0, 'e2e-client', '', 'client@returns.test', '+15550199', 900001, NULL),
			(900003, 1, 'creator', 'E2E Creator', 'creator@returns.test', NULL, 900001, NULL),
			(900004, 1, 'expert', 'E2E Expert', 'expert@returns.test', NULL, 900001, NULL),
			(900005, 1, 'watcher', 'E2E Watcher', 'watcher@returns.test', NULL, 900001, NULL)`,
		`INSERT INTO employee_permissions (reseller_id, employee_id, permission) VALUES
			(900001, 900005, 'tsGoodsReturn'),
			(900001, 900004, 'tsGoodsReturn')`,
	}
	for _, stmt := range stmts {
		_, err := pg.DB.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	keys := []string{"permit:900001:tsGoodsReturn"}
	for id := e2eReseller; id <= e2eWatcher; id++ {
		keys = append(keys, "contractor:"+strconv.FormatInt(id, 10))
	}
	require.NoError(t, rdb.Del(ctx, keys...))
}

// ==========================
// Dispatch Scenarios
// ==========================

func changeRequest() grn.NotificationRequest {
	return grn.NotificationRequest{
		ResellerID:        e2eReseller,
		NotificationType:  grn.NotificationChange,
		ClientID:          e2eClient,
		CreatorID:         e2eCreator,
		ExpertID:          e2eExpert,
		ComplaintID:       5001,
		ComplaintNumber:   "GR-5001",
		ConsumptionID:     6001,
		ConsumptionNumber: "C-6001",
		AgreementNumber:   "AG-E2E",
		Date:              "2024-05-01",
		Differences:       &grn.Differences{From: models.StatusPending, To: models.StatusRejected},
	}
}

func TestE2E_ChangeNotification(t *testing.T) {
	s := setupStack(t)

	result, err := s.dispatcher.Dispatch(context.Background(), changeRequest())
	require.NoError(t, err)

	assert.True(t, result.EmployeeEmailSent)
	assert.True(t, result.ClientEmailSent)
	assert.True(t, result.ClientSMS.IsSent)

	require.Len(t, s.email.sent, 3)
	assert.Equal(t, "expert@returns.test", s.email.sent[0].To)
	assert.Equal(t, "watcher@returns.test", s.email.sent[1].To)
	assert.Equal(t, "client@returns.test", s.email.sent[2].To)
	assert.Contains(t, s.email.sent[2].Body, "Dear e2e-client,")

	require.Len(t, s.sns.published, 1)
	assert.Equal(t, "+15550199", aws.ToString(s.sns.published[0].PhoneNumber))
	assert.Equal(t, "Complaint #GR-5001: Status changed from Pending to Rejected",
		aws.ToString(s.sns.published[0].Message))
}

func TestE2E_CachedLookupsMatchDatabase(t *testing.T) {
	s := setupStack(t)

	first, err := s.dispatcher.Dispatch(context.Background(), changeRequest())
	require.NoError(t, err)

	// second run is served from Redis
	second, err := s.dispatcher.Dispatch(context.Background(), changeRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, s.email.sent[:3], s.email.sent[3:])
}

func TestE2E_ForeignClientRejected(t *testing.T) {
	s := setupStack(t)

	req := changeRequest()
	req.ClientID = e2eCreator

	_, err := s.dispatcher.Dispatch(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Client not found or invalid type")
	assert.Empty(t, s.email.sent)
	assert.Empty(t, s.sns.published)
}

func BenchmarkDispatch_Change(b *testing.B) {
	s := setupStack(b)
	req := changeRequest()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.dispatcher.Dispatch(context.Background(), req)
	}
}
