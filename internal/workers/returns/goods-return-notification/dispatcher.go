package goodsreturnnotification

import (
	"context"
	"errors"

	apperrors "returns-notifier/internal/common/errors"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/metrics"
	"returns-notifier/internal/common/observability"
	"returns-notifier/internal/i18n"
	"returns-notifier/internal/messaging"
	"returns-notifier/internal/models"
	"returns-notifier/internal/references"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Message keys resolved through the Localizer.
const (
	keyNewPositionAdded      = "NewPositionAdded"
	keyPositionStatusChanged = "PositionStatusHasChanged"
	keyEmployeeEmailSubject  = "complaintEmployeeEmailSubject"
	keyEmployeeEmailBody     = "complaintEmployeeEmailBody"
	keyClientEmailSubject    = "complaintClientEmailSubject"
	keyClientEmailBody       = "complaintClientEmailBody"
)

// Validation messages.
const (
	msgEmptyReseller   = "Empty resellerId"
	msgEmptyType       = "Empty notificationType"
	msgSellerNotFound  = "Seller not found"
	msgClientNotFound  = "Client not found or invalid type"
	msgCreatorNotFound = "Creator not found"
	msgExpertNotFound  = "Expert not found"
)

// EntityLookup resolves the parties referenced by a request. A missing record
// is reported as references.ErrNotFound.
type EntityLookup interface {
	GetSeller(ctx context.Context, id int64) (models.Party, error)
	GetClient(ctx context.Context, id int64) (models.ClientParty, error)
	GetEmployee(ctx context.Context, id int64) (models.Party, error)
	StatusName(id models.StatusID) string
}

type Localizer interface {
	Render(key string, vars map[string]string, loc i18n.Locale) string
}

type PermissionedRecipients interface {
	EmailsForEvent(ctx context.Context, resellerID int64, event string) ([]string, error)
	DefaultSenderAddress() string
}

// SMSNotifier returns an empty string on success and the failure text
// otherwise.
type SMSNotifier interface {
	Send(ctx context.Context, req messaging.SMSRequest) string
}

// Dependencies are the collaborators of a Dispatcher.
type Dependencies struct {
	Lookup     EntityLookup
	Localizer  Localizer
	Recipients PermissionedRecipients
	Email      messaging.EmailTransport
	SMS        SMSNotifier
	Obs        *observability.Observability
}

// Dispatcher validates a goods-return notification request and fans it out to
// the employee email, client email and client SMS channels. It keeps no state
// between calls.
type Dispatcher struct {
	deps   Dependencies
	config *Config
	logger logger.Logger
}

func NewDispatcher(config *Config, deps Dependencies, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		deps:   deps,
		config: config,
		logger: log,
	}
}

type parties struct {
	seller  models.Party
	client  models.ClientParty
	creator models.Party
	expert  models.Party
}

// Dispatch validates req and sends the notifications. Validation and template
// failures abort before any channel fires; channel failures are reported in
// the result and never abort sibling channels.
func (d *Dispatcher) Dispatch(ctx context.Context, req NotificationRequest) (*DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError(err)
	}

	ctx, span := d.deps.Obs.StartSpan(ctx, "goods_return.dispatch",
		attribute.Int64("reseller.id", req.ResellerID),
		attribute.String("notification.type", req.NotificationType.String()),
	)
	defer span.End()

	result, err := d.dispatch(ctx, req)
	outcome := "dispatched"
	if err != nil {
		outcome = "rejected"
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			outcome = apperrors.GetErrorCategory(stdErr.Code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.NotificationDispatches.WithLabelValues(req.NotificationType.String(), outcome).Inc()
	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req NotificationRequest) (*DispatchResult, error) {
	p, err := d.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	loc := d.locale(req.ResellerID, p.seller)
	tc := d.templateContext(req, p, loc)
	if field, empty := tc.FirstEmpty(); empty {
		details := ""
		if field == FieldDifferences && req.NotificationType == NotificationChange {
			details = "status change notification without differences"
		}
		return nil, apperrors.NewTemplateDataError(field, details)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCancelledError(err)
	}

	result := &DispatchResult{}
	d.notifyEmployees(ctx, req, tc, loc, result)

	if req.notifiesClient() {
		d.notifyClientByEmail(ctx, req, p.client, tc, loc, result)
		d.notifyClientBySMS(ctx, req, p.client, tc, loc, result)
	}

	d.logger.Info("goods return notification dispatched", map[string]interface{}{
		"resellerId":        req.ResellerID,
		"complaintId":       req.ComplaintID,
		"notificationType":  req.NotificationType.String(),
		"employeeEmailSent": result.EmployeeEmailSent,
		"clientEmailSent":   result.ClientEmailSent,
		"clientSmsSent":     result.ClientSMS.IsSent,
	})
	return result, nil
}

// resolve runs the ordered request validation and party lookups.
func (d *Dispatcher) resolve(ctx context.Context, req NotificationRequest) (*parties, error) {
	if req.ResellerID <= 0 {
		return nil, apperrors.NewValidationError(msgEmptyReseller)
	}
	if req.NotificationType == 0 {
		return nil, apperrors.NewValidationError(msgEmptyType)
	}

	var (
		p   parties
		err error
	)

	p.seller, err = d.deps.Lookup.GetSeller(ctx, req.ResellerID)
	if err = lookupError(p.seller, err, "seller", msgSellerNotFound); err != nil {
		return nil, err
	}

	p.client, err = d.deps.Lookup.GetClient(ctx, req.ClientID)
	if err = lookupError(p.client, err, "client", msgClientNotFound); err != nil {
		return nil, err
	}
	if !p.client.IsCustomer() || !p.client.BelongsTo(req.ResellerID) {
		return nil, apperrors.NewValidationError(msgClientNotFound)
	}

	p.creator, err = d.deps.Lookup.GetEmployee(ctx, req.CreatorID)
	if err = lookupError(p.creator, err, "creator", msgCreatorNotFound); err != nil {
		return nil, err
	}

	p.expert, err = d.deps.Lookup.GetEmployee(ctx, req.ExpertID)
	if err = lookupError(p.expert, err, "expert", msgExpertNotFound); err != nil {
		return nil, err
	}

	return &p, nil
}

func lookupError(party models.Party, err error, entity, notFound string) error {
	switch {
	case err == nil && !isNilParty(party):
		return nil
	case err == nil, errors.Is(err, references.ErrNotFound):
		return apperrors.NewValidationError(notFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewCancelledError(err)
	default:
		return apperrors.NewDatabaseQueryError(entity, err)
	}
}

func isNilParty(p models.Party) bool {
	if p == nil {
		return true
	}
	c, ok := p.(*models.Contractor)
	return ok && c == nil
}

// locale scopes rendering to the reseller and the seller's language.
func (d *Dispatcher) locale(resellerID int64, seller models.Party) i18n.Locale {
	loc := i18n.Locale{ResellerID: resellerID, Language: d.config.DefaultLanguage}
	if l, ok := seller.(models.Localized); ok && l.Language() != "" {
		loc.Language = l.Language()
	}
	return loc
}

func (d *Dispatcher) differences(req NotificationRequest, loc i18n.Locale) string {
	switch {
	case req.NotificationType == NotificationNew:
		return d.deps.Localizer.Render(keyNewPositionAdded, nil, loc)
	case req.NotificationType == NotificationChange && req.Differences != nil:
		return d.deps.Localizer.Render(keyPositionStatusChanged, map[string]string{
			"FROM": d.deps.Lookup.StatusName(req.Differences.From),
			"TO":   d.deps.Lookup.StatusName(req.Differences.To),
		}, loc)
	default:
		return ""
	}
}

func (d *Dispatcher) templateContext(req NotificationRequest, p *parties, loc i18n.Locale) *TemplateContext {
	clientName := p.client.DisplayName()
	if clientName == "" {
		clientName = p.client.RawName()
	}

	tc := &TemplateContext{}
	tc.addID(FieldComplaintID, req.ComplaintID)
	tc.add(FieldComplaintNumber, req.ComplaintNumber)
	tc.addID(FieldCreatorID, p.creator.ID())
	tc.add(FieldCreatorName, p.creator.DisplayName())
	tc.addID(FieldExpertID, p.expert.ID())
	tc.add(FieldExpertName, p.expert.DisplayName())
	tc.addID(FieldClientID, p.client.ID())
	tc.add(FieldClientName, clientName)
	tc.addID(FieldConsumptionID, req.ConsumptionID)
	tc.add(FieldConsumptionNumber, req.ConsumptionNumber)
	tc.add(FieldAgreementNumber, req.AgreementNumber)
	tc.add(FieldDate, req.Date)
	tc.add(FieldDifferences, d.differences(req, loc))
	return tc
}

func (d *Dispatcher) notifyEmployees(ctx context.Context, req NotificationRequest, tc *TemplateContext, loc i18n.Locale, result *DispatchResult) {
	from := d.deps.Recipients.DefaultSenderAddress()
	if from == "" {
		d.logger.Warn("no sender address configured, skipping employee email", nil)
		return
	}

	recipients, err := d.deps.Recipients.EmailsForEvent(ctx, req.ResellerID, d.config.PermitEvent)
	if err != nil {
		d.logger.Error("failed to load employee recipients", map[string]interface{}{
			"resellerId": req.ResellerID,
			"error":      err,
		})
		return
	}
	if len(recipients) == 0 {
		return
	}

	vars := tc.Vars()
	subject := d.deps.Localizer.Render(keyEmployeeEmailSubject, vars, loc)
	body := d.deps.Localizer.Render(keyEmployeeEmailBody, vars, loc)

	for _, to := range recipients {
		err := d.deps.Email.SendEmail(ctx, messaging.EmailMessage{
			From:       from,
			To:         to,
			Subject:    subject,
			Body:       body,
			ResellerID: req.ResellerID,
			Event:      models.EventChangeReturnStatus,
		})
		d.recordChannel(ctx, metrics.ChannelEmployeeEmail, err)
		if err != nil {
			d.logger.Error("employee email failed", map[string]interface{}{
				"to":    to,
				"error": err,
			})
		}
		result.EmployeeEmailSent = true
	}
}

// notifyClientByEmail marks the channel as sent once attempted; transport
// errors are only logged.
func (d *Dispatcher) notifyClientByEmail(ctx context.Context, req NotificationRequest, client models.ClientParty, tc *TemplateContext, loc i18n.Locale, result *DispatchResult) {
	vars := tc.Vars()
	status := req.Differences.To

	err := d.deps.Email.SendEmail(ctx, messaging.EmailMessage{
		From:       d.deps.Recipients.DefaultSenderAddress(),
		To:         client.Email(),
		Subject:    d.deps.Localizer.Render(keyClientEmailSubject, vars, loc),
		Body:       d.deps.Localizer.Render(keyClientEmailBody, vars, loc),
		ResellerID: req.ResellerID,
		Event:      models.EventChangeReturnStatus,
		ClientID:   client.ID(),
		StatusID:   &status,
	})
	d.recordChannel(ctx, metrics.ChannelClientEmail, err)
	if err != nil {
		d.logger.Error("client email failed", map[string]interface{}{
			"clientId": client.ID(),
			"error":    err,
		})
	}
	result.ClientEmailSent = true
}

func (d *Dispatcher) notifyClientBySMS(ctx context.Context, req NotificationRequest, client models.ClientParty, tc *TemplateContext, loc i18n.Locale, result *DispatchResult) {
	language := client.Language()
	if language == "" {
		language = loc.Language
	}

	msg := d.deps.SMS.Send(ctx, messaging.SMSRequest{
		ResellerID: req.ResellerID,
		ClientID:   client.ID(),
		Mobile:     client.Mobile(),
		Language:   language,
		Event:      models.EventChangeReturnStatus,
		StatusID:   req.Differences.To,
		Variables:  tc.Vars(),
	})
	if msg == "" {
		d.recordChannel(ctx, metrics.ChannelClientSMS, nil)
		result.ClientSMS.IsSent = true
		return
	}

	d.recordChannel(ctx, metrics.ChannelClientSMS, errors.New(msg))
	d.logger.Warn("client sms not sent", map[string]interface{}{
		"clientId": client.ID(),
		"reason":   msg,
	})
	result.ClientSMS.Message = msg
}

func (d *Dispatcher) recordChannel(ctx context.Context, channel string, err error) {
	label := "ok"
	if err != nil {
		label = "error"
	}
	metrics.NotificationChannelAttempts.WithLabelValues(channel, label).Inc()
	d.deps.Obs.RecordChannelAttempt(ctx, channel, err == nil)
}
