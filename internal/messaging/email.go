// Package messaging delivers notification emails and SMS messages.
package messaging

import (
	"context"
	"fmt"
	"strconv"

	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailMessage is one rendered email plus the event metadata it belongs to.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Body    string

	ResellerID int64
	Event      string
	ClientID   int64            // zero for employee emails
	StatusID   *models.StatusID // set for client status-change emails
}

// EmailTransport sends a single email.
type EmailTransport interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SESService is the subset of the SES client used here.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends email through Amazon SES. Event metadata travels as
// message tags so it can be traced in SES event publishing.
type SESTransport struct {
	client           SESService
	configurationSet string
	logger           logger.Logger
}

func NewSESTransport(client SESService, configurationSet string, log logger.Logger) *SESTransport {
	return &SESTransport{
		client:           client,
		configurationSet: configurationSet,
		logger:           log.WithFields(map[string]interface{}{"transport": "ses"}),
	}
}

func (t *SESTransport) SendEmail(ctx context.Context, msg EmailMessage) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(msg.From),
		Tags:   messageTags(msg),
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}

	t.logger.Debug("email sent", map[string]interface{}{
		"messageId":  aws.ToString(out.MessageId),
		"resellerId": msg.ResellerID,
		"event":      msg.Event,
	})
	return nil
}

func messageTags(msg EmailMessage) []types.MessageTag {
	tags := []types.MessageTag{
		{Name: aws.String("reseller_id"), Value: aws.String(strconv.FormatInt(msg.ResellerID, 10))},
	}
	if msg.Event != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("event"), Value: aws.String(msg.Event)})
	}
	if msg.ClientID != 0 {
		tags = append(tags, types.MessageTag{Name: aws.String("client_id"), Value: aws.String(strconv.FormatInt(msg.ClientID, 10))})
	}
	if msg.StatusID != nil {
		tags = append(tags, types.MessageTag{Name: aws.String("status_id"), Value: aws.String(strconv.Itoa(int(*msg.StatusID)))})
	}
	return tags
}
