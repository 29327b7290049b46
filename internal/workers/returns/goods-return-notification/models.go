package goodsreturnnotification

import (
	"strconv"

	"returns-notifier/internal/models"
)

// NotificationType tells whether a complaint position was created or changed.
type NotificationType int

const (
	NotificationNew    NotificationType = 1
	NotificationChange NotificationType = 2
)

func (t NotificationType) String() string {
	switch t {
	case NotificationNew:
		return "new"
	case NotificationChange:
		return "change"
	default:
		return "unknown"
	}
}

// Differences is the status transition of a CHANGE notification.
type Differences struct {
	From models.StatusID `json:"from"`
	To   models.StatusID `json:"to"`
}

type NotificationRequest struct {
	ResellerID       int64            `json:"resellerId"`
	NotificationType NotificationType `json:"notificationType"`

	ClientID  int64 `json:"clientId"`
	CreatorID int64 `json:"creatorId"`
	ExpertID  int64 `json:"expertId"`

	ComplaintID       int64  `json:"complaintId"`
	ComplaintNumber   string `json:"complaintNumber"`
	ConsumptionID     int64  `json:"consumptionId"`
	ConsumptionNumber string `json:"consumptionNumber"`
	AgreementNumber   string `json:"agreementNumber"`
	Date              string `json:"date"`

	Differences *Differences `json:"differences,omitempty"`
}

// notifiesClient reports whether the client email and SMS channels apply.
// A zero target status counts as absent.
func (r NotificationRequest) notifiesClient() bool {
	return r.NotificationType == NotificationChange && r.Differences != nil && r.Differences.To != 0
}

type SMSResult struct {
	IsSent  bool   `json:"isSent"`
	Message string `json:"message"`
}

// DispatchResult is returned as the job's output variables.
type DispatchResult struct {
	EmployeeEmailSent bool      `json:"notificationEmployeeByEmail"`
	ClientEmailSent   bool      `json:"notificationClientByEmail"`
	ClientSMS         SMSResult `json:"notificationClientBySms"`
}

// Template fields in the order they are checked for emptiness.
const (
	FieldComplaintID       = "COMPLAINT_ID"
	FieldComplaintNumber   = "COMPLAINT_NUMBER"
	FieldCreatorID         = "CREATOR_ID"
	FieldCreatorName       = "CREATOR_NAME"
	FieldExpertID          = "EXPERT_ID"
	FieldExpertName        = "EXPERT_NAME"
	FieldClientID          = "CLIENT_ID"
	FieldClientName        = "CLIENT_NAME"
	FieldConsumptionID     = "CONSUMPTION_ID"
	FieldConsumptionNumber = "CONSUMPTION_NUMBER"
	FieldAgreementNumber   = "AGREEMENT_NUMBER"
	FieldDate              = "DATE"
	FieldDifferences       = "DIFFERENCES"
)

type templateField struct {
	name  string
	value string
}

// TemplateContext is the ordered set of variables handed to message templates.
type TemplateContext struct {
	fields []templateField
}

func (c *TemplateContext) add(name, value string) {
	c.fields = append(c.fields, templateField{name: name, value: value})
}

func (c *TemplateContext) addID(name string, id int64) {
	value := ""
	if id != 0 {
		value = strconv.FormatInt(id, 10)
	}
	c.add(name, value)
}

// FirstEmpty returns the first field without a value.
func (c *TemplateContext) FirstEmpty() (string, bool) {
	for _, f := range c.fields {
		if f.value == "" {
			return f.name, true
		}
	}
	return "", false
}

// Get returns the value of a field.
func (c *TemplateContext) Get(name string) string {
	for _, f := range c.fields {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

// Vars returns a fresh map copy for template rendering.
func (c *TemplateContext) Vars() map[string]string {
	vars := make(map[string]string, len(c.fields))
	for _, f := range c.fields {
		vars[f.name] = f.value
	}
	return vars
}
