package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"krisha_scrooper/models"
)

// Selectors of the krisha.kz results markup.
const (
	selTotal       = "div.search-results-nb"
	selCard        = "div.a-card"
	selHighlighted = "section.highlighted-section"
	selPrice       = "div.a-card__price"
	selTitle       = "a.a-card__title"
	selSubtitle    = "div.a-card__subtitle"
	attrID         = "data-id"
)

var ErrMarkupShape = errors.New("unexpected page markup")

// MarkupError reports which part of a page did not have the expected shape.
type MarkupError struct {
	Page  int
	Field string
	Err   error
}

func (e *MarkupError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("page %d: %s: %v", e.Page, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *MarkupError) Unwrap() error {
	return e.Err
}

var digitsRegex = regexp.MustCompile(`[0-9]+`)

func ParseDocument(data []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseTotal reads the site's count of all matching ads.
func ParseTotal(doc *goquery.Document) (int, error) {
	node := doc.Find(selTotal).First()
	if node.Length() == 0 {
		return 0, &MarkupError{Field: "total", Err: fmt.Errorf("%w: no %s", ErrMarkupShape, selTotal)}
	}
	total, err := digitsInt(node.Text())
	if err != nil {
		return 0, &MarkupError{Field: "total", Err: err}
	}
	return total, nil
}

// ParseEntries returns the ad cards in page order, without the promoted
// cards of the highlighted section.
func ParseEntries(doc *goquery.Document) *goquery.Selection {
	return doc.Find(selCard).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(selHighlighted).Length() == 0
	})
}

// ParseEntry extracts one flat from an ad card.
func ParseEntry(card *goquery.Selection) (models.Flat, error) {
	id, ok := card.Attr(attrID)
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return models.Flat{}, &MarkupError{Field: "id", Err: fmt.Errorf("%w: card without %s", ErrMarkupShape, attrID)}
	}

	priceNode, err := child(card, selPrice)
	if err != nil {
		return models.Flat{}, &MarkupError{Field: "price of " + id, Err: err}
	}
	price, err := digitsInt(priceNode.Text())
	if err != nil {
		return models.Flat{}, &MarkupError{Field: "price of " + id, Err: err}
	}

	titleNode, err := child(card, selTitle)
	if err != nil {
		return models.Flat{}, &MarkupError{Field: "title of " + id, Err: err}
	}
	facts, err := ParseTitle(strings.TrimSpace(titleNode.Text()))
	if err != nil {
		return models.Flat{}, &MarkupError{Field: "title of " + id, Err: err}
	}

	addressNode, err := child(card, selSubtitle)
	if err != nil {
		return models.Flat{}, &MarkupError{Field: "address of " + id, Err: err}
	}

	return models.Flat{
		Ad: models.Ad{
			ID:      id,
			Address: strings.TrimSpace(addressNode.Text()),
			Area:    facts.Area,
			Price:   price,
		},
		Rooms:          facts.Rooms,
		Floor:          facts.Floor,
		BuildingHeight: facts.BuildingHeight,
	}, nil
}

func child(s *goquery.Selection, selector string) (*goquery.Selection, error) {
	node := s.Find(selector).First()
	if node.Length() == 0 {
		return nil, fmt.Errorf("%w: no %s", ErrMarkupShape, selector)
	}
	return node, nil
}

// digitsInt concatenates every digit run in text, so "1 250 000 〒" is 1250000.
func digitsInt(text string) (int, error) {
	digits := strings.Join(digitsRegex.FindAllString(text, -1), "")
	if digits == "" {
		return 0, fmt.Errorf("%w: no digits in %q", ErrMarkupShape, strings.TrimSpace(text))
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMarkupShape, err)
	}
	return n, nil
}
