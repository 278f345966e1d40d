package query

import (
	"fmt"
	"math"
	"sort"
)

type kind int

const (
	kindInt kind = iota
	kindNumber
	kindBool
	kindString
)

func (k kind) String() string {
	switch k {
	case kindInt:
		return "integer"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	default:
		return "string"
	}
}

type filterSpec struct {
	kind  kind
	apply func(f *Filters, v any)

	// checkAgainst names the filter whose raw value is kind checked instead
	// of this one.
	checkAgainst string
}

var filterSpecs = map[string]filterSpec{
	"sort":              {kind: kindString, apply: func(f *Filters, v any) { f.Sort = v.(string) }},
	"page":              {kind: kindInt, apply: func(f *Filters, v any) { f.Page = asInt(v) }},
	"rooms":             {kind: kindInt, apply: func(f *Filters, v any) { f.Rooms = asInt(v) }},
	"price_from":        {kind: kindInt, apply: func(f *Filters, v any) { f.PriceFrom = asInt(v) }},
	"price_to":          {kind: kindInt, apply: func(f *Filters, v any) { f.PriceTo = asInt(v) }},
	"photo":             {kind: kindBool, apply: func(f *Filters, v any) { f.Photo = true }},
	"novostroy":         {kind: kindBool, apply: func(f *Filters, v any) { f.NewBuilding = true }},
	"owner":             {kind: kindBool, apply: func(f *Filters, v any) { f.Owner = true }},
	"krisha_agent":      {kind: kindBool, apply: func(f *Filters, v any) { f.KrishaAgent = true }},
	"floor_from":        {kind: kindInt, apply: func(f *Filters, v any) { f.FloorFrom = asInt(v) }},
	"floor_to":          {kind: kindInt, apply: func(f *Filters, v any) { f.FloorTo = asInt(v) }},
	"floor_not_first":   {kind: kindBool, apply: func(f *Filters, v any) { f.FloorNotFirst = true }},
	"floor_not_last":    {kind: kindBool, apply: func(f *Filters, v any) { f.FloorNotLast = true }, checkAgainst: "floor_not_first"},
	"area_from":         {kind: kindNumber, apply: func(f *Filters, v any) { f.AreaFrom = asFloat(v) }},
	"area_to":           {kind: kindNumber, apply: func(f *Filters, v any) { f.AreaTo = asFloat(v) }},
	"kitchen_area_from": {kind: kindNumber, apply: func(f *Filters, v any) { f.KitchenAreaFrom = asFloat(v) }},
	"kitchen_area_to":   {kind: kindNumber, apply: func(f *Filters, v any) { f.KitchenAreaTo = asFloat(v) }},
	"living_area_from":  {kind: kindNumber, apply: func(f *Filters, v any) { f.LivingAreaFrom = asFloat(v) }},
	"living_area_to":    {kind: kindNumber, apply: func(f *Filters, v any) { f.LivingAreaTo = asFloat(v) }},
}

// FilterNames lists the keys accepted by FiltersFromMap.
func FilterNames() []string {
	names := make([]string, 0, len(filterSpecs))
	for name := range filterSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsToggle reports whether name is an on/off filter that takes no value.
func IsToggle(name string) bool {
	spec, ok := filterSpecs[name]
	return ok && spec.kind == kindBool
}

// FiltersFromMap converts loosely typed filter values, as decoded from YAML,
// into Filters. Falsy values are dropped before their kind is checked.
// Range checks are left to Build.
func FiltersFromMap(raw map[string]any) (Filters, error) {
	var f Filters

	// Sorted for a deterministic first error.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		v := raw[name]
		spec, ok := filterSpecs[name]
		if !ok {
			return Filters{}, &FilterError{
				Filter: name,
				Err:    fmt.Errorf("%w: unknown filter", ErrTypeKind),
			}
		}
		if isFalsy(v) {
			continue
		}

		checked := v
		if spec.checkAgainst != "" {
			// The site pairs floor_not_last with floor_not_first.
			checked = raw[spec.checkAgainst]
		}
		if !hasKind(checked, spec.kind) {
			return Filters{}, &FilterError{
				Filter: name,
				Err:    fmt.Errorf("%w: want %s, got %T", ErrTypeKind, spec.kind, checked),
			}
		}

		if !fitsInt(v) {
			return Filters{}, &FilterError{
				Filter: name,
				Err:    fmt.Errorf("%w: %v overflows int", ErrValueRange, v),
			}
		}

		spec.apply(&f, v)
	}

	return f, nil
}

func hasKind(v any, k kind) bool {
	switch v.(type) {
	case int, int64, uint64:
		return k == kindInt || k == kindNumber
	case float64:
		return k == kindNumber
	case bool:
		return k == kindBool
	case string:
		return k == kindString
	default:
		return false
	}
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case uint64:
		return t == 0
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// fitsInt reports whether an integer value converts to int without loss.
// YAML decodes integers above MaxInt64 as uint64.
func fitsInt(v any) bool {
	switch t := v.(type) {
	case int64:
		return t >= math.MinInt && t <= math.MaxInt
	case uint64:
		return t <= math.MaxInt
	}
	return true
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case uint64:
		return int(t)
	}
	return 0
}

func asFloat(v any) float64 {
	if t, ok := v.(float64); ok {
		return t
	}
	return float64(asInt(v))
}
