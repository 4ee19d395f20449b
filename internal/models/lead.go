package models

import (
	"strings"
	"time"
)

// LeadKind discriminates the three inquiry forms.
type LeadKind string

const (
	LeadBuyer   LeadKind = "buyer"
	LeadOwner   LeadKind = "owner"
	LeadContact LeadKind = "contact"
)

// LeadKinds lists every lead kind.
var LeadKinds = []LeadKind{LeadBuyer, LeadOwner, LeadContact}

// Collection returns the document collection the kind is stored in.
func (k LeadKind) Collection() string {
	return string(k) + "s"
}

// ParseLeadKind accepts a kind in singular or plural form.
func ParseLeadKind(s string) (LeadKind, bool) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range LeadKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// LeadMeta is the identity and bookkeeping shared by every lead.
type LeadMeta struct {
	ID        string    `json:"id"`
	UserType  LeadKind  `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactInfo holds the contact fields every form requires.
type ContactInfo struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=7,max=20"`
}

func (c *ContactInfo) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

func (c ContactInfo) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":  strings.TrimSpace(c.Name),
		"email": strings.TrimSpace(c.Email),
		"phone": strings.TrimSpace(c.Phone),
	}
}

// Lead is implemented by every inquiry type.
type Lead interface {
	Kind() LeadKind
	Meta() *LeadMeta
	Contact() ContactInfo
	Fields() map[string]interface{}

	// Normalize trims surrounding whitespace from every text field so that
	// blank input fails required checks.
	Normalize()
}

// NewLead returns an empty lead of the given kind, or nil for unknown kinds.
func NewLead(kind LeadKind) Lead {
	switch kind {
	case LeadBuyer:
		return &BuyerLead{}
	case LeadOwner:
		return &OwnerLead{}
	case LeadContact:
		return &ContactLead{}
	}
	return nil
}

// BuyerLead is an inquiry from someone looking to buy or rent.
type BuyerLead struct {
	LeadMeta
	ContactInfo

	Budget        int64  `json:"budget,omitempty" validate:"gte=0"`
	Rooms         *int   `json:"rooms,omitempty" validate:"omitempty,gte=0"`
	City          string `json:"city" validate:"required"`
	PropertyType  string `json:"propertyType,omitempty"`
	Zone          string `json:"zone,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
}

func (b *BuyerLead) Kind() LeadKind       { return LeadBuyer }
func (b *BuyerLead) Meta() *LeadMeta      { return &b.LeadMeta }
func (b *BuyerLead) Contact() ContactInfo { return b.ContactInfo }

func (b *BuyerLead) Normalize() {
	b.ContactInfo.normalize()
	trimAll(&b.City, &b.PropertyType, &b.Zone, &b.PaymentMethod, &b.Notes)
}

// Fields encodes the lead for the document store.
func (b *BuyerLead) Fields() map[string]interface{} {
	f := b.ContactInfo.fields()
	f["userType"] = string(LeadBuyer)
	f["city"] = b.City
	if b.Budget != 0 {
		f["budget"] = b.Budget
	}
	putPtr(f, "rooms", b.Rooms)
	putString(f, "propertyType", b.PropertyType)
	putString(f, "zone", b.Zone)
	putString(f, "paymentMethod", b.PaymentMethod)
	putString(f, "notes", b.Notes)
	return f
}

// OwnerLead is an owner offering a property for the agency to list.
type OwnerLead struct {
	LeadMeta
	ContactInfo

	PropertyType      string `json:"propertyType,omitempty"`
	Address           string `json:"address" validate:"required"`
	City              string `json:"city" validate:"required"`
	PropertyCondition string `json:"propertyCondition,omitempty"`
	LegalStatus       string `json:"legalStatus,omitempty"`
	AskingPrice       int64  `json:"askingPrice,omitempty" validate:"gte=0"`
	Notes             string `json:"notes,omitempty" validate:"max=2000"`
}

func (o *OwnerLead) Kind() LeadKind       { return LeadOwner }
func (o *OwnerLead) Meta() *LeadMeta      { return &o.LeadMeta }
func (o *OwnerLead) Contact() ContactInfo { return o.ContactInfo }

func (o *OwnerLead) Normalize() {
	o.ContactInfo.normalize()
	trimAll(&o.PropertyType, &o.Address, &o.City, &o.PropertyCondition, &o.LegalStatus, &o.Notes)
}

// Fields encodes the lead for the document store.
func (o *OwnerLead) Fields() map[string]interface{} {
	f := o.ContactInfo.fields()
	f["userType"] = string(LeadOwner)
	f["address"] = o.Address
	f["city"] = o.City
	if o.AskingPrice != 0 {
		f["askingPrice"] = o.AskingPrice
	}
	putString(f, "propertyType", o.PropertyType)
	putString(f, "propertyCondition", o.PropertyCondition)
	putString(f, "legalStatus", o.LegalStatus)
	putString(f, "notes", o.Notes)
	return f
}

// ContactLead is a general message from the contact form.
type ContactLead struct {
	LeadMeta
	ContactInfo

	Subject string `json:"subject,omitempty" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (c *ContactLead) Kind() LeadKind       { return LeadContact }
func (c *ContactLead) Meta() *LeadMeta      { return &c.LeadMeta }
func (c *ContactLead) Contact() ContactInfo { return c.ContactInfo }

func (c *ContactLead) Normalize() {
	c.ContactInfo.normalize()
	trimAll(&c.Subject, &c.Message)
}

// Fields encodes the lead for the document store.
func (c *ContactLead) Fields() map[string]interface{} {
	f := c.ContactInfo.fields()
	f["userType"] = string(LeadContact)
	f["message"] = c.Message
	putString(f, "subject", c.Subject)
	return f
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
