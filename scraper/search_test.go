package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"krisha_scrooper/query"
)

type card struct {
	id      string
	title   string
	price   string
	address string
}

func renderPage(total int, highlighted, regular []card) []byte {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	fmt.Fprintf(&b, `<div class="search-results-nb">Найдено %d объявлений</div>`, total)
	b.WriteString(`<section class="highlighted-section">`)
	for _, c := range highlighted {
		writeCard(&b, c)
	}
	b.WriteString(`</section><section class="a-list">`)
	for _, c := range regular {
		writeCard(&b, c)
	}
	b.WriteString(`</section></body></html>`)
	return []byte(b.String())
}

func writeCard(b *strings.Builder, c card) {
	fmt.Fprintf(b, `<div class="a-card" data-id="%s">`, c.id)
	fmt.Fprintf(b, `<a class="a-card__title" href="/a/show/%s">%s</a>`, c.id, c.title)
	if c.price != "" {
		fmt.Fprintf(b, `<div class="a-card__price">%s</div>`, c.price)
	}
	fmt.Fprintf(b, `<div class="a-card__subtitle">%s</div>`, c.address)
	b.WriteString(`</div>`)
}

func goodCard(id int) card {
	return card{
		id:      strconv.Itoa(id),
		title:   fmt.Sprintf("1-комнатная квартира · %d м² · %d/9 этаж", 30+id%20, 1+id%9),
		price:   fmt.Sprintf("%d 000 〒", 80+id%20),
		address: fmt.Sprintf("Есильский р-н, дом %d", id),
	}
}

// fakeSite serves total listings perPage at a time. Page 1 also carries
// promoted cards in the highlighted section.
type fakeSite struct {
	pages map[int][]byte
	urls  []string
	calls []url.Values
	err   error
}

func newFakeSite(total, perPage, promoted int) *fakeSite {
	site := &fakeSite{pages: map[int][]byte{}}

	var hot []card
	for i := 0; i < promoted; i++ {
		hot = append(hot, goodCard(900000+i))
	}

	page := 1
	for start := 0; start < total || page == 1; start += perPage {
		var regular []card
		for id := start; id < min(start+perPage, total); id++ {
			regular = append(regular, goodCard(700000+id))
		}
		if page == 1 {
			site.pages[page] = renderPage(total, hot, regular)
		} else {
			site.pages[page] = renderPage(total, nil, regular)
		}
		page++
	}
	return site
}

func (s *fakeSite) Fetch(_ context.Context, rawURL string, params url.Values) ([]byte, error) {
	s.urls = append(s.urls, rawURL)
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}

	page := 1
	if p := params.Get(query.KeyPage); p != "" {
		page, _ = strconv.Atoi(p)
	}
	if body, ok := s.pages[page]; ok {
		return body, nil
	}
	return renderPage(0, nil, nil), nil
}

func monthlyFlats(limit int) Request {
	return Request{Category: CategoryFlat, Mode: ModeMonthly, Limit: limit}
}

func TestSearch_CollectsAllPages(t *testing.T) {
	site := newFakeSite(47, 10, 2)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	type progress struct{ page, collected int }
	var seen []progress
	s.OnPage(func(page, collected int) {
		seen = append(seen, progress{page, collected})
	})

	flats, err := s.Search(context.Background(), monthlyFlats(3000))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(site.calls) != 5 {
		t.Fatalf("expected 5 fetches, got %d", len(site.calls))
	}
	if len(flats) != 47 {
		t.Fatalf("expected 47 listings, got %d", len(flats))
	}
	for i, f := range flats {
		want := strconv.Itoa(700000 + i)
		if f.ID != want {
			t.Fatalf("listing %d: expected id %s, got %s", i, want, f.ID)
		}
	}

	if site.urls[0] != "https://krisha.kz/arenda/kvartiry/astana/" {
		t.Fatalf("unexpected search URL %s", site.urls[0])
	}
	if site.calls[0].Has(query.KeyPage) {
		t.Fatalf("first request should not carry a page param: %v", site.calls[0])
	}
	for i := 1; i < 5; i++ {
		if got := site.calls[i].Get(query.KeyPage); got != strconv.Itoa(i+1) {
			t.Fatalf("request %d: expected page=%d, got %q", i, i+1, got)
		}
	}

	want := []progress{{1, 10}, {2, 20}, {3, 30}, {4, 40}, {5, 47}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d progress calls, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("progress %d: expected %v, got %v", i, want[i], seen[i])
		}
	}
}

func TestSearch_CapBelowTotal(t *testing.T) {
	site := newFakeSite(47, 10, 2)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	flats, err := s.Search(context.Background(), monthlyFlats(15))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(flats) != 15 {
		t.Fatalf("expected 15 listings, got %d", len(flats))
	}
	if len(site.calls) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(site.calls))
	}
	if flats[14].ID != "700014" {
		t.Fatalf("expected last id 700014, got %s", flats[14].ID)
	}
}

func TestSearch_CapAboveTotal(t *testing.T) {
	site := newFakeSite(5, 10, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	flats, err := s.Search(context.Background(), monthlyFlats(100))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(flats) != 5 {
		t.Fatalf("expected 5 listings, got %d", len(flats))
	}
	if len(site.calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(site.calls))
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	site := newFakeSite(47, 20, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	flats, err := s.Search(context.Background(), monthlyFlats(0))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(flats) != DefaultLimit {
		t.Fatalf("expected %d listings, got %d", DefaultLimit, len(flats))
	}
	if len(site.calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(site.calls))
	}
}

func TestSearch_NoMatches(t *testing.T) {
	site := newFakeSite(0, 10, 3)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	flats, err := s.Search(context.Background(), monthlyFlats(50))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(flats) != 0 {
		t.Fatalf("expected no listings, got %d", len(flats))
	}
	if len(site.calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(site.calls))
	}
}

func TestSearch_NegativeLimit(t *testing.T) {
	site := newFakeSite(47, 10, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	_, err := s.Search(context.Background(), monthlyFlats(-1))
	if !errors.Is(err, query.ErrValueRange) {
		t.Fatalf("expected ErrValueRange, got %v", err)
	}
	if len(site.calls) != 0 {
		t.Fatalf("expected no fetches, got %d", len(site.calls))
	}
}

func TestSearch_FilterParams(t *testing.T) {
	site := newFakeSite(25, 10, 0)
	s := NewSearcher(site, "https://krisha.kz/", ParseStrict)

	req := monthlyFlats(3000)
	req.Filters = query.Filters{
		Sort:    query.SortPriceAsc,
		Page:    7,
		Rooms:   1,
		PriceTo: 100000,
		Photo:   true,
	}

	if _, err := s.Search(context.Background(), req); err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	first := site.calls[0]
	if first.Get(query.KeySort) != "price-asc" || first.Get(query.KeyRooms) != "1" ||
		first.Get(query.KeyPriceTo) != "100000" || first.Get(query.KeyPhoto) != "1" {
		t.Fatalf("unexpected filter params %v", first)
	}
	if first.Has(query.KeyPage) {
		t.Fatalf("user page filter should not reach the first request: %v", first)
	}
	if site.calls[1].Get(query.KeyPage) != "2" || site.calls[1].Get(query.KeyRooms) != "1" {
		t.Fatalf("unexpected second request params %v", site.calls[1])
	}
}

func TestSearch_InvalidFilter(t *testing.T) {
	site := newFakeSite(47, 10, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	req := monthlyFlats(10)
	req.Filters.Sort = "newest"

	_, err := s.Search(context.Background(), req)
	var fe *query.FilterError
	if !errors.As(err, &fe) || fe.Filter != "sort" {
		t.Fatalf("expected sort FilterError, got %v", err)
	}
	if len(site.calls) != 0 {
		t.Fatalf("expected no fetches, got %d", len(site.calls))
	}
}

func TestSearch_UnsupportedCombination(t *testing.T) {
	site := newFakeSite(47, 10, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	_, err := s.Search(context.Background(), Request{Category: CategoryHouse, Mode: ModeDaily})
	if !errors.Is(err, ErrUnsupportedCombination) {
		t.Fatalf("expected ErrUnsupportedCombination, got %v", err)
	}
	if len(site.calls) != 0 {
		t.Fatalf("expected no fetches, got %d", len(site.calls))
	}
}

func TestSearch_StrictPolicyFailsOnMalformedCard(t *testing.T) {
	site := newFakeSite(30, 10, 0)
	bad := goodCard(700015)
	bad.price = ""
	site.pages[2] = renderPage(30, nil, []card{goodCard(700010), bad})

	s := NewSearcher(site, "https://krisha.kz", ParseStrict)
	flats, err := s.Search(context.Background(), monthlyFlats(30))

	var me *MarkupError
	if !errors.As(err, &me) {
		t.Fatalf("expected MarkupError, got %v", err)
	}
	if me.Page != 2 || me.Field != "price of 700015" {
		t.Fatalf("unexpected markup error %+v", me)
	}
	if flats != nil {
		t.Fatalf("expected no listings on failure, got %d", len(flats))
	}
}

func TestSearch_SkipPolicyDropsMalformedCard(t *testing.T) {
	site := newFakeSite(12, 10, 0)
	bad := goodCard(700003)
	bad.title = "Квартира"
	regular := []card{goodCard(700000), goodCard(700001), goodCard(700002), bad}
	for id := 700004; id < 700010; id++ {
		regular = append(regular, goodCard(id))
	}
	site.pages[1] = renderPage(12, nil, regular)

	s := NewSearcher(site, "https://krisha.kz", ParseSkip)
	run, flats, err := s.Run(context.Background(), monthlyFlats(100))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// 9 good cards on page 1, 2 on page 2, and the empty page 3 ends the run.
	if len(flats) != 11 {
		t.Fatalf("expected 11 listings, got %d", len(flats))
	}
	for _, f := range flats {
		if f.ID == "700003" {
			t.Fatal("malformed card should have been skipped")
		}
	}
	if run.EntriesSkipped != 1 {
		t.Fatalf("expected 1 skipped entry, got %d", run.EntriesSkipped)
	}
	if run.PagesFetched != 3 {
		t.Fatalf("expected 3 pages fetched, got %d", run.PagesFetched)
	}
}

func TestSearch_SkipPolicyContinuesPastUnparseablePage(t *testing.T) {
	site := newFakeSite(30, 10, 0)
	var broken []card
	for id := 700010; id < 700020; id++ {
		c := goodCard(id)
		c.title = "Квартира"
		broken = append(broken, c)
	}
	site.pages[2] = renderPage(30, nil, broken)

	s := NewSearcher(site, "https://krisha.kz", ParseSkip)
	run, flats, err := s.Run(context.Background(), monthlyFlats(100))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Pages 1 and 3 hold good cards; the empty page 4 ends the run.
	if len(flats) != 20 {
		t.Fatalf("expected 20 listings, got %d", len(flats))
	}
	if flats[10].ID != "700020" {
		t.Fatalf("expected page 3 listings after page 1, got %s", flats[10].ID)
	}
	if run.EntriesSkipped != 10 {
		t.Fatalf("expected 10 skipped entries, got %d", run.EntriesSkipped)
	}
	if len(site.calls) != 4 || site.calls[2].Get(query.KeyPage) != "3" {
		t.Fatalf("expected pages 1-4 to be fetched, got %d calls", len(site.calls))
	}
}

func TestSearch_MissingTotal(t *testing.T) {
	site := newFakeSite(10, 10, 0)
	site.pages[1] = loadFixture(t, "results_no_total.html")

	s := NewSearcher(site, "https://krisha.kz", ParseSkip)
	_, err := s.Search(context.Background(), monthlyFlats(10))

	var me *MarkupError
	if !errors.As(err, &me) || me.Field != "total" || me.Page != 1 {
		t.Fatalf("expected total MarkupError on page 1, got %v", err)
	}
}

func TestSearch_StopsWhenPagesRunDry(t *testing.T) {
	// The counter claims more matches than the pages deliver.
	site := newFakeSite(15, 10, 0)
	var first []card
	for id := 700000; id < 700010; id++ {
		first = append(first, goodCard(id))
	}
	site.pages[1] = renderPage(40, nil, first)

	s := NewSearcher(site, "https://krisha.kz", ParseStrict)
	flats, err := s.Search(context.Background(), monthlyFlats(100))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(flats) != 15 {
		t.Fatalf("expected 15 listings, got %d", len(flats))
	}
	if len(site.calls) != 3 {
		t.Fatalf("expected 3 fetches, got %d", len(site.calls))
	}
}

func TestSearch_FetchError(t *testing.T) {
	site := newFakeSite(10, 10, 0)
	site.err = errors.New("connection reset")

	s := NewSearcher(site, "https://krisha.kz", ParseStrict)
	_, err := s.Search(context.Background(), monthlyFlats(10))
	if !errors.Is(err, site.err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 1") {
		t.Fatalf("expected page number in error, got %v", err)
	}
}

func TestRun_Summary(t *testing.T) {
	site := newFakeSite(47, 10, 2)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	req := monthlyFlats(25)
	req.PresetID = "one-room-monthly"
	run, flats, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(flats) != 25 || run.ListingsFound != 25 {
		t.Fatalf("expected 25 listings, got %d (run says %d)", len(flats), run.ListingsFound)
	}
	if run.TotalReported != 47 {
		t.Fatalf("expected total 47, got %d", run.TotalReported)
	}
	if run.PagesFetched != 3 {
		t.Fatalf("expected 3 pages, got %d", run.PagesFetched)
	}
	if run.PresetID != "one-room-monthly" || run.FinishedAt == nil {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestParseParsePolicy(t *testing.T) {
	cases := map[string]ParsePolicy{"": ParseStrict, "strict": ParseStrict, "SKIP": ParseSkip}
	for in, want := range cases {
		got, err := ParseParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseParsePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseParsePolicy("lenient"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestSearch_CancelledContext(t *testing.T) {
	site := newFakeSite(47, 10, 0)
	s := NewSearcher(site, "https://krisha.kz", ParseStrict)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, monthlyFlats(20))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(site.calls) != 0 {
		t.Fatalf("expected no fetches, got %d", len(site.calls))
	}
}
