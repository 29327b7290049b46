package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"returns-notifier/internal/common/config"
	apperrors "returns-notifier/internal/common/errors"
	"returns-notifier/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := map[string]bool{
		"rpc error: code = Unavailable desc = connection refused": true,
		"context deadline exceeded":                               true,
		"NOT_FOUND: job 12 not found":                             false,
		"permission denied":                                       false,
	}
	for msg, want := range tests {
		assert.Equal(t, want, isRetryableZeebeError(stderrors.New(msg)), msg)
	}
}

func TestExecuteWithRetry_RecoversFromTransientError(t *testing.T) {
	c := newTestClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		if calls < 2 {
			return stderrors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	c := newTestClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		return stderrors.New("unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExternalService))
}

func TestExecuteWithRetry_PermanentErrorNotRetried(t *testing.T) {
	c := newTestClient()
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), "complete", func(context.Context) error {
		calls++
		return stderrors.New("job not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	c := newTestClient()
	c.config.RetryConfig.BaseDelay = time.Second
	c.config.RetryConfig.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ExecuteWithRetry(ctx, "topology", func(context.Context) error {
		return stderrors.New("timeout")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFromApp(t *testing.T) {
	cc := ConfigFromApp(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 5000, RequestTimeout: 2000, UsePlaintext: true})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 5*time.Second, cc.ConnectionTimeout)
	assert.Equal(t, 2*time.Second, cc.RequestTimeout)
	assert.True(t, cc.UsePlaintextConnection)
}

type recordingHandler struct {
	calls int
}

func (h *recordingHandler) Handle(_ worker.JobClient, _ entities.Job) {
	h.calls++
}

func TestInstrument(t *testing.T) {
	h := &recordingHandler{}
	wrapped := instrument("test-task", h)

	wrapped(nil, entities.Job{})

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("test-task")))
}
