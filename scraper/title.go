package scraper

import (
	"fmt"
	"regexp"
	"strconv"
)

var numberRegex = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// TitleFacts are the numbers a card title carries, e.g.
// "2-комнатная квартира, 54.3 м², 5/9 этаж".
type TitleFacts struct {
	Rooms          int
	Area           float64
	Floor          *int
	BuildingHeight *int
}

// Numbers in a title appear in this order. Trailing optional fields may be
// missing; extra numbers are ignored.
var titleSchema = []struct {
	name     string
	required bool
	set      func(tf *TitleFacts, token string) error
}{
	{"rooms", true, func(tf *TitleFacts, token string) error {
		n, err := strconv.Atoi(token)
		tf.Rooms = n
		return err
	}},
	{"area", true, func(tf *TitleFacts, token string) error {
		f, err := strconv.ParseFloat(token, 64)
		tf.Area = f
		return err
	}},
	{"floor", false, func(tf *TitleFacts, token string) error {
		n, err := strconv.Atoi(token)
		tf.Floor = &n
		return err
	}},
	{"building height", false, func(tf *TitleFacts, token string) error {
		n, err := strconv.Atoi(token)
		tf.BuildingHeight = &n
		return err
	}},
}

func ParseTitle(title string) (TitleFacts, error) {
	var tf TitleFacts
	tokens := numberRegex.FindAllString(title, -1)

	for i, field := range titleSchema {
		if i >= len(tokens) {
			if field.required {
				return TitleFacts{}, fmt.Errorf("%w: title %q has no %s", ErrMarkupShape, title, field.name)
			}
			break
		}
		if err := field.set(&tf, tokens[i]); err != nil {
			return TitleFacts{}, fmt.Errorf("%w: title %q: bad %s %q", ErrMarkupShape, title, field.name, tokens[i])
		}
	}

	return tf, nil
}
