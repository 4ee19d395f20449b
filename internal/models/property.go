package models

import (
	"time"
)

// Property is a real-estate listing.
// Optional numeric attributes are pointers so that "not set" and zero differ.
type Property struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Zone        string `json:"zone,omitempty"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`

	Type         PropertyType   `json:"type"`
	Status       PropertyStatus `json:"status"`
	BusinessType BusinessType   `json:"businessType,omitempty"`
	Featured     bool           `json:"featured"`

	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	PrivateArea *float64 `json:"privateArea,omitempty"`
	BuiltArea   *float64 `json:"builtArea,omitempty"`
	TotalArea   *float64 `json:"totalArea,omitempty"`
	BalconyArea *float64 `json:"balconyArea,omitempty"`
	TerraceArea *float64 `json:"terraceArea,omitempty"`
	StorageArea *float64 `json:"storageArea,omitempty"`
	LotArea     *float64 `json:"lotArea,omitempty"`
	LotFront    *float64 `json:"lotFront,omitempty"`
	LotDepth    *float64 `json:"lotDepth,omitempty"`
	Floors      *int     `json:"floors,omitempty"`
	HOAFee      *int64   `json:"hoaFee,omitempty"`
	Stratum     *int     `json:"stratum,omitempty"`

	Images         []string       `json:"images"`
	Videos         []string       `json:"videos"`
	Location       *GeoPoint      `json:"location,omitempty"`
	Amenities      []string       `json:"amenities,omitempty"`
	PaymentMethods []string       `json:"paymentMethods,omitempty"`
	Exchange       *ExchangeTerms `json:"exchange,omitempty"`

	OwnerName  string `json:"ownerName,omitempty"`
	OwnerPhone string `json:"ownerPhone,omitempty"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
	AgentName  string `json:"agentName,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExchangeTerms describes what the owner accepts in a permuta deal.
type ExchangeTerms struct {
	Description    string   `json:"description,omitempty"`
	EstimatedValue *int64   `json:"estimatedValue,omitempty"`
	AcceptedTypes  []string `json:"acceptedTypes,omitempty"`
}

// Fields encodes the terms for the document store.
func (e ExchangeTerms) Fields() map[string]interface{} {
	f := map[string]interface{}{}
	putString(f, "description", e.Description)
	putPtr(f, "estimatedValue", e.EstimatedValue)
	putList(f, "acceptedTypes", e.AcceptedTypes)
	return f
}

// AcceptsExchange reports whether permuta is among the payment methods.
func (p *Property) AcceptsExchange() bool {
	for _, m := range p.PaymentMethods {
		if m == PaymentExchange {
			return true
		}
	}
	return false
}

// Fields encodes the property for the document store. Every set field is
// written; id and timestamps are managed by the repository.
func (p *Property) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"title":    p.Title,
		"address":  p.Address,
		"city":     p.City,
		"price":    p.Price,
		"type":     string(p.Type),
		"status":   string(p.Status),
		"featured": p.Featured,
	}

	putString(f, "zone", p.Zone)
	putString(f, "description", p.Description)
	putString(f, "businessType", string(p.BusinessType))

	putPtr(f, "bedrooms", p.Bedrooms)
	putPtr(f, "bathrooms", p.Bathrooms)
	putPtr(f, "privateArea", p.PrivateArea)
	putPtr(f, "builtArea", p.BuiltArea)
	putPtr(f, "totalArea", p.TotalArea)
	putPtr(f, "balconyArea", p.BalconyArea)
	putPtr(f, "terraceArea", p.TerraceArea)
	putPtr(f, "storageArea", p.StorageArea)
	putPtr(f, "lotArea", p.LotArea)
	putPtr(f, "lotFront", p.LotFront)
	putPtr(f, "lotDepth", p.LotDepth)
	putPtr(f, "floors", p.Floors)
	putPtr(f, "hoaFee", p.HOAFee)
	putPtr(f, "stratum", p.Stratum)

	putList(f, "images", p.Images)
	putList(f, "videos", p.Videos)
	putList(f, "amenities", p.Amenities)
	putList(f, "paymentMethods", p.PaymentMethods)

	if p.Location != nil {
		f["location"] = p.Location.Fields()
	}
	if p.Exchange != nil {
		f["exchange"] = p.Exchange.Fields()
	}

	putString(f, "ownerName", p.OwnerName)
	putString(f, "ownerPhone", p.OwnerPhone)
	putString(f, "ownerEmail", p.OwnerEmail)
	putString(f, "agentName", p.AgentName)

	return f
}

// Clone returns a deep copy of p.
func (p Property) Clone() Property {
	out := p
	out.Bedrooms = clonePtr(p.Bedrooms)
	out.Bathrooms = clonePtr(p.Bathrooms)
	out.PrivateArea = clonePtr(p.PrivateArea)
	out.BuiltArea = clonePtr(p.BuiltArea)
	out.TotalArea = clonePtr(p.TotalArea)
	out.BalconyArea = clonePtr(p.BalconyArea)
	out.TerraceArea = clonePtr(p.TerraceArea)
	out.StorageArea = clonePtr(p.StorageArea)
	out.LotArea = clonePtr(p.LotArea)
	out.LotFront = clonePtr(p.LotFront)
	out.LotDepth = clonePtr(p.LotDepth)
	out.Floors = clonePtr(p.Floors)
	out.HOAFee = clonePtr(p.HOAFee)
	out.Stratum = clonePtr(p.Stratum)
	out.Images = cloneList(p.Images)
	out.Videos = cloneList(p.Videos)
	out.Amenities = cloneList(p.Amenities)
	out.PaymentMethods = cloneList(p.PaymentMethods)
	out.Location = clonePtr(p.Location)
	if p.Exchange != nil {
		ex := *p.Exchange
		ex.EstimatedValue = clonePtr(p.Exchange.EstimatedValue)
		ex.AcceptedTypes = cloneList(p.Exchange.AcceptedTypes)
		out.Exchange = &ex
	}
	return out
}

// PropertyPatch is a partial update: keys to overwrite and keys to remove.
type PropertyPatch struct {
	Set   map[string]interface{}
	Unset []string
}

// IsEmpty reports whether the patch changes nothing.
func (pp PropertyPatch) IsEmpty() bool {
	return len(pp.Set) == 0 && len(pp.Unset) == 0
}

// Keys returns every key the patch touches.
func (pp PropertyPatch) Keys() []string {
	keys := make([]string, 0, len(pp.Set)+len(pp.Unset))
	for k := range pp.Set {
		keys = append(keys, k)
	}
	return append(keys, pp.Unset...)
}

func putString(f map[string]interface{}, key, v string) {
	if v != "" {
		f[key] = v
	}
}

func putPtr[T any](f map[string]interface{}, key string, v *T) {
	if v != nil {
		f[key] = *v
	}
}

func putList(f map[string]interface{}, key string, v []string) {
	if v != nil {
		f[key] = cloneList(v)
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneList(v []string) []string {
	if v == nil {
		return nil
	}
	return append(make([]string, 0, len(v)), v...)
}
