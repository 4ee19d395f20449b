package models

// PropertyType is the closed set of listing categories.
type PropertyType string

const (
	TypeHouse        PropertyType = "Casa"
	TypeApartment    PropertyType = "Apartamento"
	TypeStudio       PropertyType = "Apartaestudio"
	TypeCountryHouse PropertyType = "Casa Campestre"
	TypeCommercial   PropertyType = "Local"
	TypeOffice       PropertyType = "Oficina"
	TypeWarehouse    PropertyType = "Bodega"
	TypeLot          PropertyType = "Lote"
	TypeFarm         PropertyType = "Finca"
	TypeBuilding     PropertyType = "Edificio"
	TypeClinic       PropertyType = "Consultorio"
)

// DefaultType is used when a record carries no type.
const DefaultType = TypeHouse

// PropertyTypes lists every canonical type.
var PropertyTypes = []PropertyType{
	TypeHouse, TypeApartment, TypeStudio, TypeCountryHouse, TypeCommercial,
	TypeOffice, TypeWarehouse, TypeLot, TypeFarm, TypeBuilding, TypeClinic,
}

// legacyTypes maps the English labels found in older records.
var legacyTypes = map[string]PropertyType{
	"house":      TypeHouse,
	"apartment":  TypeApartment,
	"commercial": TypeCommercial,
	"land":       TypeLot,
}

// Valid reports whether t is a canonical type.
func (t PropertyType) Valid() bool {
	for _, known := range PropertyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NormalizeType maps a stored label to its canonical form. Empty labels get
// DefaultType, legacy labels their canonical label, and anything else is
// returned unchanged.
func NormalizeType(raw string) PropertyType {
	if raw == "" {
		return DefaultType
	}
	if canonical, ok := legacyTypes[raw]; ok {
		return canonical
	}
	return PropertyType(raw)
}

// IsLegacyType reports whether raw is one of the legacy labels.
func IsLegacyType(raw string) bool {
	_, ok := legacyTypes[raw]
	return ok
}

// LegacyAliases returns the legacy labels that normalize to t.
func LegacyAliases(t PropertyType) []string {
	var aliases []string
	for legacy, canonical := range legacyTypes {
		if canonical == t {
			aliases = append(aliases, legacy)
		}
	}
	return aliases
}

// PropertyStatus is the availability of a listing.
type PropertyStatus string

const (
	StatusAvailable PropertyStatus = "available"
	StatusSold      PropertyStatus = "sold"
	StatusRented    PropertyStatus = "rented"
)

// DefaultStatus is used when a record carries no status.
const DefaultStatus = StatusAvailable

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusRented:
		return true
	}
	return false
}

// NormalizeStatus fills in DefaultStatus for empty values.
func NormalizeStatus(raw string) PropertyStatus {
	if raw == "" {
		return DefaultStatus
	}
	return PropertyStatus(raw)
}

// BusinessType is the kind of deal offered.
type BusinessType string

const (
	BusinessSale     BusinessType = "sale"
	BusinessRent     BusinessType = "rent"
	BusinessExchange BusinessType = "exchange"
)

// Valid reports whether b is empty or a known business type.
func (b BusinessType) Valid() bool {
	switch b {
	case "", BusinessSale, BusinessRent, BusinessExchange:
		return true
	}
	return false
}

// PaymentExchange is the payment method that enables exchange terms.
const PaymentExchange = "permuta"
