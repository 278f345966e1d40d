package scraper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedCombination = errors.New("category and mode combination is not offered")
	ErrUnknownCategory        = errors.New("unknown category")
	ErrUnknownMode            = errors.New("unknown mode")
)

type Category string

const (
	CategoryFlat  Category = "flat"
	CategoryHouse Category = "house"
	CategoryRoom  Category = "room"
	CategoryDacha Category = "dacha"
)

type Mode string

const (
	ModeBuy     Mode = "buy"
	ModeMonthly Mode = "monthly"
	ModeDaily   Mode = "daily"
	ModeHourly  Mode = "hourly"
)

// City is the only city searched.
const City = "astana"

var categorySlugs = map[Category]string{
	CategoryFlat:  "kvartiry",
	CategoryHouse: "doma",
	CategoryRoom:  "komnaty",
	CategoryDacha: "dachi",
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categorySlugs[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeBuy, ModeMonthly, ModeDaily, ModeHourly:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// SearchURL returns the results page for a category and mode, e.g.
// https://krisha.kz/arenda/kvartiry/astana/.
func SearchURL(base string, c Category, m Mode) (string, error) {
	var path string

	switch m {
	case ModeBuy, ModeMonthly:
		slug, ok := categorySlugs[c]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		if m == ModeBuy {
			path = "prodazha/" + slug + "/"
		} else {
			path = "arenda/" + slug + "/"
		}
	case ModeDaily, ModeHourly:
		if c != CategoryFlat {
			return "", fmt.Errorf("%w: %s %s", ErrUnsupportedCombination, c, m)
		}
		if m == ModeDaily {
			path = "arenda/kvartiry-posutochno/"
		} else {
			path = "arenda/kvartiry-po-chasam/"
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}

	return strings.TrimRight(base, "/") + "/" + path + City + "/", nil
}
