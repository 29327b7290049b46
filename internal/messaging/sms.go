package messaging

import (
	"context"
	"strconv"
	"sync"
	"time"

	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/metrics"
	"returns-notifier/internal/i18n"
	"returns-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"golang.org/x/time/rate"
)

// SMS failure texts reported back to the caller.
const (
	ErrTextSMSDisabled    = "SMS notifications are disabled"
	ErrTextMobileEmpty    = "Client mobile is empty"
	ErrTextRateLimited    = "SMS rate limit exceeded"
	ErrTextGatewayFailure = "SMS gateway error"
)

const smsTemplateKey = "complaintClientSms"

// SMSRequest carries everything needed to notify one client by SMS.
type SMSRequest struct {
	ResellerID int64
	ClientID   int64
	Mobile     string
	Language   string
	Event      string
	StatusID   models.StatusID
	Variables  map[string]string
}

// SNSService is the subset of the SNS client used here.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Renderer renders localized texts.
type Renderer interface {
	Render(key string, vars map[string]string, loc i18n.Locale) string
}

// SMSOptions configures SMSNotifier.
type SMSOptions struct {
	Enabled       bool
	SenderID      string
	SMSType       string // Transactional or Promotional
	RatePerMinute int
	Burst         int
}

// SMSNotifier publishes client SMS messages through SNS. Send reports failures
// as text; an empty string means the message was accepted.
type SMSNotifier struct {
	client   SNSService
	renderer Renderer
	opts     SMSOptions
	limiter  *resellerLimiter
	logger   logger.Logger
}

func NewSMSNotifier(client SNSService, renderer Renderer, opts SMSOptions, log logger.Logger) *SMSNotifier {
	return &SMSNotifier{
		client:   client,
		renderer: renderer,
		opts:     opts,
		limiter:  newResellerLimiter(opts.RatePerMinute, opts.Burst),
		logger:   log.WithFields(map[string]interface{}{"transport": "sns"}),
	}
}

func (n *SMSNotifier) Send(ctx context.Context, req SMSRequest) string {
	if !n.opts.Enabled {
		return ErrTextSMSDisabled
	}
	if req.Mobile == "" {
		return ErrTextMobileEmpty
	}
	if !n.limiter.Allow(req.ResellerID) {
		metrics.SMSRateLimited.WithLabelValues(strconv.FormatInt(req.ResellerID, 10)).Inc()
		return ErrTextRateLimited
	}

	text := n.renderer.Render(smsTemplateKey, req.Variables, i18n.Locale{
		ResellerID: req.ResellerID,
		Language:   req.Language,
	})

	input := &sns.PublishInput{
		PhoneNumber:       aws.String(req.Mobile),
		Message:           aws.String(text),
		MessageAttributes: n.messageAttributes(req),
	}

	out, err := n.client.Publish(ctx, input)
	if err != nil {
		n.logger.Warn("sms publish failed", map[string]interface{}{
			"resellerId": req.ResellerID,
			"clientId":   req.ClientID,
			"error":      err,
		})
		return ErrTextGatewayFailure + ": " + err.Error()
	}

	n.logger.Debug("sms sent", map[string]interface{}{
		"messageId":  aws.ToString(out.MessageId),
		"resellerId": req.ResellerID,
		"clientId":   req.ClientID,
		"event":      req.Event,
		"statusId":   int(req.StatusID),
	})
	return ""
}

func (n *SMSNotifier) messageAttributes(req SMSRequest) map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String(n.smsType())},
		"reseller_id":         {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(req.ResellerID, 10))},
		"client_id":           {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(req.ClientID, 10))},
		"status_id":           {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(int(req.StatusID)))},
	}
	if req.Event != "" {
		attrs["event"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(req.Event)}
	}
	if n.opts.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(n.opts.SenderID)}
	}
	return attrs
}

func (n *SMSNotifier) smsType() string {
	if n.opts.SMSType == "" {
		return "Transactional"
	}
	return n.opts.SMSType
}

// EvictIdle drops limiters for resellers not seen within maxAge.
func (n *SMSNotifier) EvictIdle(maxAge time.Duration) {
	n.limiter.Evict(maxAge)
}

// resellerLimiter keeps one token bucket per reseller.
type resellerLimiter struct {
	mu         sync.Mutex
	limiters   map[int64]*rate.Limiter
	lastAccess map[int64]time.Time
	rate       rate.Limit
	burst      int
}

func newResellerLimiter(perMinute, burst int) *resellerLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	return &resellerLimiter{
		limiters:   make(map[int64]*rate.Limiter),
		lastAccess: make(map[int64]time.Time),
		rate:       limit,
		burst:      burst,
	}
}

func (l *resellerLimiter) Allow(resellerID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[resellerID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[resellerID] = limiter
	}
	l.lastAccess[resellerID] = time.Now()
	return limiter.Allow()
}

func (l *resellerLimiter) Evict(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	for id, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, id)
			delete(l.lastAccess, id)
		}
	}
}
