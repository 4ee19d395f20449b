package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RuleKind says how the builder treats a field.
type RuleKind int

const (
	// RuleRequired fields must be non-empty or the build fails.
	RuleRequired RuleKind = iota
	// RuleFallback fields are filled with a default when empty.
	RuleFallback
	// RuleOptional fields are dropped when empty or zero.
	RuleOptional
	// RuleConditional fields are dropped when empty or when their
	// condition does not hold.
	RuleConditional
)

// FieldRule declares how one stored key is cleaned and validated.
type FieldRule struct {
	Key  string
	Kind RuleKind

	// DependsOn names the key the condition of a RuleConditional reads.
	DependsOn string

	empty func(p *Property) bool
	clear func(p *Property)
	fill  func(p *Property, d Defaults)
	keep  func(p *Property) bool
	check func(p *Property) string
}

// Defaults supplies fallback values.
type Defaults struct {
	City string
}

var propertyRules = []FieldRule{
	requiredString("title", func(p *Property) *string { return &p.Title }),
	requiredString("address", func(p *Property) *string { return &p.Address }),
	requiredString("zone", func(p *Property) *string { return &p.Zone }),
	{
		Key:   "price",
		Kind:  RuleRequired,
		empty: func(p *Property) bool { return p.Price == 0 },
		check: func(p *Property) string {
			if p.Price < 0 {
				return "must be positive"
			}
			return ""
		},
	},

	{
		Key:   "type",
		Kind:  RuleFallback,
		empty: func(p *Property) bool { return p.Type == "" },
		fill:  func(p *Property, _ Defaults) { p.Type = DefaultType },
		check: func(p *Property) string {
			p.Type = NormalizeType(string(p.Type))
			if !p.Type.Valid() {
				return fmt.Sprintf("unknown property type %q", p.Type)
			}
			return ""
		},
	},
	{
		Key:   "status",
		Kind:  RuleFallback,
		empty: func(p *Property) bool { return p.Status == "" },
		fill:  func(p *Property, _ Defaults) { p.Status = DefaultStatus },
		check: func(p *Property) string {
			if !p.Status.Valid() {
				return fmt.Sprintf("unknown status %q", p.Status)
			}
			return ""
		},
	},
	{
		Key:   "city",
		Kind:  RuleFallback,
		empty: func(p *Property) bool { return strings.TrimSpace(p.City) == "" },
		fill:  func(p *Property, d Defaults) { p.City = d.City },
	},

	optionalString("description", func(p *Property) *string { return &p.Description }),
	{
		Key:   "businessType",
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return p.BusinessType == "" },
		clear: func(p *Property) { p.BusinessType = "" },
		check: func(p *Property) string {
			if !p.BusinessType.Valid() {
				return fmt.Sprintf("unknown business type %q", p.BusinessType)
			}
			return ""
		},
	},
	{
		Key:   "featured",
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return false },
		clear: func(p *Property) { p.Featured = false },
	},

	optionalNumber("bedrooms", func(p *Property) **int { return &p.Bedrooms }),
	optionalNumber("bathrooms", func(p *Property) **int { return &p.Bathrooms }),
	optionalNumber("privateArea", func(p *Property) **float64 { return &p.PrivateArea }),
	optionalNumber("builtArea", func(p *Property) **float64 { return &p.BuiltArea }),
	optionalNumber("totalArea", func(p *Property) **float64 { return &p.TotalArea }),
	optionalNumber("balconyArea", func(p *Property) **float64 { return &p.BalconyArea }),
	optionalNumber("terraceArea", func(p *Property) **float64 { return &p.TerraceArea }),
	optionalNumber("storageArea", func(p *Property) **float64 { return &p.StorageArea }),
	optionalNumber("lotArea", func(p *Property) **float64 { return &p.LotArea }),
	optionalNumber("lotFront", func(p *Property) **float64 { return &p.LotFront }),
	optionalNumber("lotDepth", func(p *Property) **float64 { return &p.LotDepth }),
	optionalNumber("floors", func(p *Property) **int { return &p.Floors }),
	optionalNumber("hoaFee", func(p *Property) **int64 { return &p.HOAFee }),
	optionalNumber("stratum", func(p *Property) **int { return &p.Stratum }),

	optionalList("images", func(p *Property) *[]string { return &p.Images }),
	optionalList("videos", func(p *Property) *[]string { return &p.Videos }),
	optionalList("amenities", func(p *Property) *[]string { return &p.Amenities }),
	optionalList("paymentMethods", func(p *Property) *[]string { return &p.PaymentMethods }),
	{
		Key:   "location",
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return p.Location == nil || p.Location.IsZero() },
		clear: func(p *Property) { p.Location = nil },
		check: func(p *Property) string {
			if p.Location == nil {
				return ""
			}
			if err := p.Location.Validate(); err != nil {
				return err.Error()
			}
			return ""
		},
	},
	{
		Key:       "exchange",
		Kind:      RuleConditional,
		DependsOn: "paymentMethods",
		empty: func(p *Property) bool {
			return p.Exchange == nil ||
				(p.Exchange.Description == "" && p.Exchange.EstimatedValue == nil && len(p.Exchange.AcceptedTypes) == 0)
		},
		clear: func(p *Property) { p.Exchange = nil },
		keep:  func(p *Property) bool { return p.AcceptsExchange() },
		check: func(p *Property) string {
			if p.Exchange != nil && p.Exchange.EstimatedValue != nil && *p.Exchange.EstimatedValue < 0 {
				return "estimated value must not be negative"
			}
			return ""
		},
	},

	optionalString("ownerName", func(p *Property) *string { return &p.OwnerName }),
	optionalString("ownerPhone", func(p *Property) *string { return &p.OwnerPhone }),
	optionalString("ownerEmail", func(p *Property) *string { return &p.OwnerEmail }),
	optionalString("agentName", func(p *Property) *string { return &p.AgentName }),
}

var rulesByKey = func() map[string]FieldRule {
	m := make(map[string]FieldRule, len(propertyRules))
	for _, r := range propertyRules {
		m[r.Key] = r
	}
	return m
}()

// readOnlyKeys are accepted in patches and silently ignored.
var readOnlyKeys = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

func requiredString(key string, field func(*Property) *string) FieldRule {
	return FieldRule{
		Key:   key,
		Kind:  RuleRequired,
		empty: func(p *Property) bool { return strings.TrimSpace(*field(p)) == "" },
	}
}

func optionalString(key string, field func(*Property) *string) FieldRule {
	return FieldRule{
		Key:   key,
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return strings.TrimSpace(*field(p)) == "" },
		clear: func(p *Property) { *field(p) = "" },
	}
}

func optionalNumber[T int | int64 | float64](key string, field func(*Property) **T) FieldRule {
	return FieldRule{
		Key:   key,
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return *field(p) == nil || **field(p) == 0 },
		clear: func(p *Property) { *field(p) = nil },
		check: func(p *Property) string {
			if v := *field(p); v != nil && *v < 0 {
				return "must not be negative"
			}
			return ""
		},
	}
}

func optionalList(key string, field func(*Property) *[]string) FieldRule {
	return FieldRule{
		Key:   key,
		Kind:  RuleOptional,
		empty: func(p *Property) bool { return len(*field(p)) == 0 },
		clear: func(p *Property) { *field(p) = nil },
	}
}

// ValidationError lists rejected fields with a reason for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Builder turns drafts and JSON patches into records ready to persist.
type Builder struct {
	defaults Defaults
}

// NewBuilder creates a Builder with the given fallbacks.
func NewBuilder(d Defaults) *Builder {
	return &Builder{defaults: d}
}

// NewDraft returns an empty listing with the fallback values already set.
func (b *Builder) NewDraft() Property {
	return Property{
		Type:   DefaultType,
		Status: DefaultStatus,
		City:   b.defaults.City,
	}
}

// CheckRequired reports every empty required field of p.
func (b *Builder) CheckRequired(p *Property) error {
	errs := map[string]string{}
	for _, r := range propertyRules {
		if r.Kind == RuleRequired && r.empty(p) {
			errs[r.Key] = "is required"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Build returns a cleaned copy of p: required fields checked, fallbacks
// filled, empty optionals dropped and conditional groups enforced.
func (b *Builder) Build(p Property) (Property, error) {
	out := p.Clone()
	errs := map[string]string{}

	for _, r := range propertyRules {
		switch r.Kind {
		case RuleRequired:
			if r.empty(&out) {
				errs[r.Key] = "is required"
				continue
			}
		case RuleFallback:
			if r.empty(&out) {
				r.fill(&out, b.defaults)
			}
		case RuleOptional:
			if r.empty(&out) {
				r.clear(&out)
			}
		case RuleConditional:
			if r.empty(&out) || !r.keep(&out) {
				r.clear(&out)
			}
		}
		if r.check != nil {
			if msg := r.check(&out); msg != "" {
				errs[r.Key] = msg
			}
		}
	}

	if len(errs) > 0 {
		return Property{}, &ValidationError{Fields: errs}
	}
	return out, nil
}

// ApplyConditions clears every conditional group whose condition no longer
// holds. It mutates p in place.
func ApplyConditions(p *Property) {
	for _, r := range propertyRules {
		if r.Kind == RuleConditional && !r.keep(p) {
			r.clear(p)
		}
	}
}

// FullPatch turns a built property into a patch that overwrites every known
// key and removes the optional keys p no longer carries.
func FullPatch(p *Property) PropertyPatch {
	set := p.Fields()
	var unset []string
	for _, r := range propertyRules {
		if _, ok := set[r.Key]; !ok && r.Kind != RuleRequired {
			unset = append(unset, r.Key)
		}
	}
	return PropertyPatch{Set: set, Unset: unset}
}

// NeedsStored reports whether the patch sets a conditional key without
// touching the key its condition reads. Such a patch must be reconciled
// against the stored record before it is written.
func (pp PropertyPatch) NeedsStored() bool {
	for _, r := range propertyRules {
		if r.Kind == RuleConditional && r.DependsOn != "" && pp.sets(r.Key) && !pp.touches(r.DependsOn) {
			return true
		}
	}
	return false
}

// Reconcile evaluates the conditions of the conditional keys the patch sets
// against stored. Keys whose condition does not hold are removed instead.
func (pp PropertyPatch) Reconcile(stored Property) PropertyPatch {
	out := PropertyPatch{Set: make(map[string]interface{}, len(pp.Set)), Unset: append([]string(nil), pp.Unset...)}
	for k, v := range pp.Set {
		out.Set[k] = v
	}
	for _, r := range propertyRules {
		if r.Kind != RuleConditional || r.DependsOn == "" || !pp.sets(r.Key) || pp.touches(r.DependsOn) {
			continue
		}
		if !r.keep(&stored) {
			delete(out.Set, r.Key)
			out.Unset = append(out.Unset, r.Key)
		}
	}
	return out
}

func (pp PropertyPatch) sets(key string) bool {
	_, ok := pp.Set[key]
	return ok
}

func (pp PropertyPatch) touches(key string) bool {
	if pp.sets(key) {
		return true
	}
	for _, k := range pp.Unset {
		if k == key {
			return true
		}
	}
	return false
}

// Patch decodes a JSON merge patch. Present keys are validated with the same
// rules as Build; null or empty optional values become removals.
func (b *Builder) Patch(data []byte) (PropertyPatch, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return PropertyPatch{}, fmt.Errorf("invalid patch: %w", err)
	}

	var p Property
	if err := json.Unmarshal(data, &p); err != nil {
		return PropertyPatch{}, fmt.Errorf("invalid patch: %w", err)
	}

	patch := PropertyPatch{Set: map[string]interface{}{}}
	errs := map[string]string{}
	keys := make([]string, 0, len(present))
	for k := range present {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		r, ok := rulesByKey[key]
		if !ok {
			if !readOnlyKeys[key] {
				errs[key] = "unknown field"
			}
			continue
		}

		isNull := bytes.Equal(bytes.TrimSpace(present[key]), []byte("null"))
		empty := isNull || r.empty(&p)

		switch {
		case r.Kind == RuleRequired && empty:
			errs[key] = "is required"
			continue
		case r.Kind == RuleFallback && empty:
			r.fill(&p, b.defaults)
		case r.Kind == RuleConditional && r.DependsOn != "" && present[r.DependsOn] != nil && !r.keep(&p):
			patch.Unset = append(patch.Unset, key)
			continue
		case empty:
			patch.Unset = append(patch.Unset, key)
			continue
		}

		if r.check != nil {
			if msg := r.check(&p); msg != "" {
				errs[key] = msg
				continue
			}
		}
		patch.Set[key] = p.Fields()[key]
	}

	// Dropping permuta clears the exchange terms even when they are not in the patch.
	if _, ok := present["paymentMethods"]; ok && !p.AcceptsExchange() {
		if _, touched := present["exchange"]; !touched {
			patch.Unset = append(patch.Unset, "exchange")
		}
	}

	if len(errs) > 0 {
		return PropertyPatch{}, &ValidationError{Fields: errs}
	}
	if patch.IsEmpty() {
		return PropertyPatch{}, &ValidationError{Fields: map[string]string{"body": "no fields to update"}}
	}
	return patch, nil
}
