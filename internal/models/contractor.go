package models

// Party is the capability view the notification flow needs from any
// contractor role. Email and Mobile may be empty.
type Party interface {
	ID() int64
	DisplayName() string
	Email() string
	Mobile() string
}

// ContractorKind mirrors the contractors.type column.
type ContractorKind int

const (
	KindCustomer ContractorKind = 0
	KindEmployee ContractorKind = 1
	KindSeller   ContractorKind = 2
)

// Contractor is the single stored record behind sellers, clients and employees.
type Contractor struct {
	ContractorID int64          `json:"id"`
	Kind         ContractorKind `json:"type"`
	Name         string         `json:"name"`
	FullName     string         `json:"fullName"`
	EmailAddress string         `json:"email,omitempty"`
	MobileNumber string         `json:"mobile,omitempty"`
	SellerID     int64          `json:"sellerId,omitempty"`
	Locale       string         `json:"locale,omitempty"`
}

func (c *Contractor) ID() int64 { return c.ContractorID }

// DisplayName returns the full name as stored; it may be empty.
func (c *Contractor) DisplayName() string { return c.FullName }

func (c *Contractor) Email() string { return c.EmailAddress }

func (c *Contractor) Mobile() string { return c.MobileNumber }

// IsCustomer reports whether the contractor is of the customer kind.
func (c *Contractor) IsCustomer() bool { return c.Kind == KindCustomer }

// BelongsTo reports whether the contractor is owned by the given seller.
func (c *Contractor) BelongsTo(sellerID int64) bool { return c.SellerID == sellerID }

// ClientParty is the client role: a Party that can be checked for kind and
// ownership and carries its raw stored name.
type ClientParty interface {
	Party
	IsCustomer() bool
	BelongsTo(sellerID int64) bool
	RawName() string
	Language() string
}

// Localized is implemented by parties that carry a preferred language.
type Localized interface {
	Language() string
}

// RawName returns the stored name without any display formatting.
func (c *Contractor) RawName() string { return c.Name }

// Language returns the contractor's preferred locale tag, e.g. "ru".
func (c *Contractor) Language() string { return c.Locale }

var _ ClientParty = (*Contractor)(nil)
