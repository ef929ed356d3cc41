package app

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Browser is the narrow slice of browser automation the scraper needs
type Browser interface {
	Navigate(ctx context.Context, url string) error
	FindAndSelect(ctx context.Context, addr Address) error
	ReadRows(ctx context.Context) ([]ScrapedRow, error)
	Close() error
}

// ScrapedRow is the raw text of one schedule row
type ScrapedRow struct {
	Label    string
	DateText string
}

// ParseOutcome is what survives parsing: entries plus the rows that did not
type ParseOutcome struct {
	Entries []CollectionEntry
	Skipped []ScrapedRow
	Past    []CollectionEntry
	Errors  []*ParseError
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// ExtractRows pulls schedule rows out of the results HTML.
// A page without a single complete row is a structural mismatch.
func ExtractRows(html string, sel Selectors) ([]ScrapedRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing results HTML: %v", ErrScrapeStructure, err)
	}

	items := doc.Find(sel.Row)
	if items.Length() == 0 {
		return nil, fmt.Errorf("%w: no rows match %q", ErrScrapeStructure, sel.Row)
	}

	var rows []ScrapedRow
	items.Each(func(i int, s *goquery.Selection) {
		label := s.Find(sel.Label).First()
		date := s.Find(sel.Date).First()
		if label.Length() == 0 || date.Length() == 0 {
			log.Printf("⚠️  Row %d has no %q or %q cell, ignoring", i+1, sel.Label, sel.Date)
			return
		}
		rows = append(rows, ScrapedRow{
			Label:    cleanText(label.Text()),
			DateText: cleanText(date.Text()),
		})
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d rows found but none has %q and %q cells", ErrScrapeStructure, items.Length(), sel.Label, sel.Date)
	}
	return rows, nil
}

// ParseRows turns raw rows into collection entries. Unknown labels are
// skipped, bad dates are reported per row, dates before today are dropped.
func ParseRows(rows []ScrapedRow, table KeywordTable, layouts []string, today time.Time) ParseOutcome {
	var out ParseOutcome
	seen := make(map[CollectionEntry]bool)
	today = DateOf(today)

	for i, row := range rows {
		bin, ok := table.Match(row.Label)
		if !ok {
			log.Printf("⚠️  Skipping row %d: %q is not a known bin type", i+1, row.Label)
			out.Skipped = append(out.Skipped, row)
			continue
		}

		date, err := ParseCollectionDate(row.DateText, layouts)
		if err != nil {
			perr := &ParseError{Row: i + 1, Label: row.Label, DateText: row.DateText, Err: err}
			log.Printf("❌ %v", perr)
			out.Errors = append(out.Errors, perr)
			continue
		}

		entry := CollectionEntry{BinType: bin, CollectionDate: date}
		if date.Before(today) {
			log.Printf("⚠️  Skipping row %d: %s on %s is in the past", i+1, bin, date.Format(DateLayout))
			out.Past = append(out.Past, entry)
			continue
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		out.Entries = append(out.Entries, entry)
	}

	SortEntriesByDate(out.Entries)
	return out
}

// ParseCollectionDate tries each layout in turn after tidying the text
// ("Monday 10th  June 2024" becomes "Monday 10 June 2024")
func ParseCollectionDate(text string, layouts []string) (time.Time, error) {
	cleaned := ordinalSuffix.ReplaceAllString(cleanText(text), "$1")
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matches %q", cleaned)
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Scraper drives a Browser through one lookup
type Scraper struct {
	browser  Browser
	profile  SiteProfile
	location *time.Location
	now      func() time.Time
}

// NewScraper builds a scraper; "today" is evaluated in loc
func NewScraper(b Browser, profile SiteProfile, loc *time.Location) *Scraper {
	if loc == nil {
		loc = time.UTC
	}
	return &Scraper{browser: b, profile: profile, location: loc, now: time.Now}
}

// Scrape performs exactly one navigate-select-read pass.
// Structural problems abort with no entries; bad rows do not.
func (s *Scraper) Scrape(ctx context.Context, addr Address) (ParseOutcome, error) {
	log.Printf("Opening %s", s.profile.LookupURL)
	if err := s.browser.Navigate(ctx, s.profile.LookupURL); err != nil {
		return ParseOutcome{}, err
	}

	log.Printf("Searching for %s", addr)
	if err := s.browser.FindAndSelect(ctx, addr); err != nil {
		return ParseOutcome{}, err
	}

	rows, err := s.browser.ReadRows(ctx)
	if err != nil {
		return ParseOutcome{}, err
	}
	if len(rows) == 0 {
		return ParseOutcome{}, fmt.Errorf("%w: schedule listing is empty", ErrScrapeStructure)
	}
	log.Printf("Read %d schedule rows", len(rows))

	return ParseRows(rows, KeywordTable(s.profile.Keywords), s.profile.DateLayouts, s.now().In(s.location)), nil
}
