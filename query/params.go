package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

var (
	ErrTypeKind   = errors.New("filter value has the wrong kind")
	ErrValueRange = errors.New("filter value out of range")
)

// FilterError names the filter that failed validation.
type FilterError struct {
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

const (
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// Filters holds the optional search filters. A zero field is not sent.
type Filters struct {
	Sort string
	Page int

	Rooms     int
	PriceFrom int
	PriceTo   int

	Photo       bool
	NewBuilding bool
	Owner       bool
	KrishaAgent bool

	FloorFrom     int
	FloorTo       int
	FloorNotFirst bool
	FloorNotLast  bool

	AreaFrom        float64
	AreaTo          float64
	KitchenAreaFrom float64
	KitchenAreaTo   float64
	LivingAreaFrom  float64
	LivingAreaTo    float64
}

// Query keys understood by the krisha.kz search pages.
const (
	KeySort            = "sort_by"
	KeyPage            = "page"
	KeyRooms           = "das[live.rooms]"
	KeyPriceFrom       = "das[price][from]"
	KeyPriceTo         = "das[price][to]"
	KeyPhoto           = "das[_sys.hasphoto]"
	KeyNewBuilding     = "das[novostroiki]"
	KeyOwner           = "das[who]"
	KeyKrishaAgent     = "das[_sys.fromAgent]"
	KeyFloorFrom       = "das[flat.floor][from]"
	KeyFloorTo         = "das[flat.floor][to]"
	KeyFloorNotFirst   = "das[floor_not_first]"
	KeyFloorNotLast    = "das[floor_not_last]"
	KeyAreaFrom        = "das[live.square][from]"
	KeyAreaTo          = "das[live.square][to]"
	KeyKitchenAreaFrom = "das[live.square_k][from]"
	KeyKitchenAreaTo   = "das[live.square_k][to]"
	KeyLivingAreaFrom  = "das[live.square_l][from]"
	KeyLivingAreaTo    = "das[live.square_l][to]"
)

const flagOn = "1"

// Build validates f and encodes it as query parameters.
func Build(f Filters) (url.Values, error) {
	params := url.Values{}

	if f.Sort != "" {
		if f.Sort != SortPriceAsc && f.Sort != SortPriceDesc {
			return nil, rangeErr("sort", f.Sort)
		}
		params.Set(KeySort, f.Sort)
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }

	ints := []struct {
		name  string
		key   string
		value int
		check func(int) bool
	}{
		{"page", KeyPage, f.Page, positive},
		{"rooms", KeyRooms, f.Rooms, positive},
		{"price_from", KeyPriceFrom, f.PriceFrom, nonNegative},
		{"price_to", KeyPriceTo, f.PriceTo, nonNegative},
		{"floor_from", KeyFloorFrom, f.FloorFrom, nil},
		{"floor_to", KeyFloorTo, f.FloorTo, nil},
	}
	for _, p := range ints {
		if p.value == 0 {
			continue
		}
		if p.check != nil && !p.check(p.value) {
			return nil, rangeErr(p.name, p.value)
		}
		params.Set(p.key, strconv.Itoa(p.value))
	}

	flags := []struct {
		key string
		on  bool
	}{
		{KeyPhoto, f.Photo},
		{KeyNewBuilding, f.NewBuilding},
		{KeyOwner, f.Owner},
		{KeyKrishaAgent, f.KrishaAgent},
		{KeyFloorNotFirst, f.FloorNotFirst},
		{KeyFloorNotLast, f.FloorNotLast},
	}
	for _, p := range flags {
		if p.on {
			params.Set(p.key, flagOn)
		}
	}

	areas := []struct {
		name  string
		key   string
		value float64
	}{
		{"area_from", KeyAreaFrom, f.AreaFrom},
		{"area_to", KeyAreaTo, f.AreaTo},
		{"kitchen_area_from", KeyKitchenAreaFrom, f.KitchenAreaFrom},
		{"kitchen_area_to", KeyKitchenAreaTo, f.KitchenAreaTo},
		{"living_area_from", KeyLivingAreaFrom, f.LivingAreaFrom},
		{"living_area_to", KeyLivingAreaTo, f.LivingAreaTo},
	}
	for _, p := range areas {
		if p.value == 0 {
			continue
		}
		if p.value < 0 {
			return nil, rangeErr(p.name, p.value)
		}
		params.Set(p.key, strconv.FormatFloat(p.value, 'f', -1, 64))
	}

	return params, nil
}

func rangeErr(filter string, value any) error {
	return &FilterError{
		Filter: filter,
		Err:    fmt.Errorf("%w: %v", ErrValueRange, value),
	}
}
