// Package scrape implements a configurable web-scraping adapter for
// suppliers without a usable API. Pages are fetched with a rotating
// user agent and optional fallback domains, then scraped with CSS
// selectors from the supplier's configuration.
package scrape

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/logging"
	"github.com/partsync/partsync/pkg/parts"
)

const retryPause = 5 * time.Second

// userAgents is rotated whenever a fetch gets blocked. Scraping
// suppliers tend to rate limit per agent string, not per address.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
}

var domainRe = regexp.MustCompile(`^(https?://)[^/]+`)

// Fetcher downloads pages, resetting its session and user agent when a
// page refuses to load, and falling back to mirror domains.
type Fetcher struct {
	mu              sync.Mutex
	client          *http.Client
	agent           string
	language        string
	fallbackDomains []string
}

// NewFetcher creates a Fetcher with optional mirror domains. Pages are
// requested in the given ISO 639 language, English as the fallback.
func NewFetcher(language string, fallbackDomains []string) *Fetcher {
	f := &Fetcher{language: acceptLanguage(language), fallbackDomains: fallbackDomains}
	f.reset()
	return f
}

// acceptLanguage renders the Accept-Language header value for a language
// code, always keeping English as the second choice so selectors written
// against the English page keep working.
func acceptLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" || language == "en" {
		return "en-US,en"
	}
	return language + ",en"
}

// reset starts a fresh session with a new random user agent.
func (f *Fetcher) reset() {
	f.client = &http.Client{Timeout: 10 * time.Second}
	f.agent = userAgents[rand.Intn(len(userAgents))]
}

// Fetch downloads and parses one page. On a blocked or failing fetch it
// pauses, rotates the session, and retries once per fallback domain.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	doc, err := f.fetchOnce(ctx, url)
	if err == nil {
		return doc, nil
	}

	domains := f.fallbackDomains
	if len(domains) == 0 {
		domains = []string{""}
	}
	for _, domain := range domains {
		logging.Ctx(ctx).Warn().
			Str("url", url).
			Str("fallback", domain).
			Msg("page fetch failed, rotating session")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryPause):
		}

		f.mu.Lock()
		f.reset()
		f.mu.Unlock()

		attempt := url
		if domain != "" {
			attempt = domainRe.ReplaceAllString(url, "${1}"+domain)
		}
		if doc, err = f.fetchOnce(ctx, attempt); err == nil {
			return doc, nil
		}
	}
	return nil, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	req.Header.Set("User-Agent", f.agent)
	client := f.client
	f.mu.Unlock()
	req.Header.Set("Accept-Language", f.language)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &errors.AdapterError{Supplier: "scrape", Transient: true, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAdapterError("scrape", resp.StatusCode, "page fetch refused", nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.WrapParse("html", url, err)
	}
	return doc, nil
}

// Selectors maps candidate fields to CSS selectors on the product page.
type Selectors struct {
	Result       string // one search result / product block
	MPN          string
	SKU          string
	Manufacturer string
	Description  string
	Datasheet    string // href is taken from the selection
	Image        string // src is taken from the selection
	Stock        string
	Category     string // breadcrumb items, root first
	AttrRow      string // one attribute table row
	AttrName     string // name cell within a row
	AttrValue    string // value cell within a row
}

// Config carries one scraping supplier definition.
type Config struct {
	ID              string
	Name            string
	SearchURL       string // printf template with one %s for the query
	Currency        string
	Language        string
	FallbackDomains []string
	Selectors       Selectors
}

// Supplier is a selector-driven scraping adapter.
type Supplier struct {
	cfg     Config
	fetcher *Fetcher
}

// New creates a scraping adapter from its configuration.
func New(cfg Config) (*Supplier, error) {
	if cfg.ID == "" || cfg.SearchURL == "" || cfg.Selectors.Result == "" {
		return nil, &errors.ConfigError{
			Component: "scrape",
			Message:   "id, search_url and result selector are required",
		}
	}
	return &Supplier{cfg: cfg, fetcher: NewFetcher(cfg.Language, cfg.FallbackDomains)}, nil
}

// ID implements suppliers.Supplier.
func (s *Supplier) ID() string { return s.cfg.ID }

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	return s.cfg.ID
}

// Search implements suppliers.Supplier.
func (s *Supplier) Search(ctx context.Context, identifier string) ([]*parts.RawCandidate, error) {
	doc, err := s.fetcher.Fetch(ctx, fmt.Sprintf(s.cfg.SearchURL, identifier))
	if err != nil {
		return nil, err
	}

	var out []*parts.RawCandidate
	doc.Find(s.cfg.Selectors.Result).Each(func(_ int, sel *goquery.Selection) {
		if c := s.toCandidate(sel); c != nil {
			out = append(out, c)
		}
	})
	return out, nil
}

// toCandidate scrapes one result block. Blocks without an MPN are
// navigation noise and are dropped here rather than failing later in
// normalization.
func (s *Supplier) toCandidate(sel *goquery.Selection) *parts.RawCandidate {
	sels := s.cfg.Selectors

	mpn := text(sel, sels.MPN)
	if mpn == "" {
		return nil
	}
	sku := text(sel, sels.SKU)
	if sku == "" {
		sku = mpn
	}

	c := &parts.RawCandidate{
		SupplierID:   s.cfg.ID,
		SupplierName: s.Name(),
		SKU:          sku,
		MPN:          mpn,
		Manufacturer: text(sel, sels.Manufacturer),
		Description:  text(sel, sels.Description),
		DatasheetURL: attr(sel, sels.Datasheet, "href"),
		ImageURL:     attr(sel, sels.Image, "src"),
		Currency:     s.cfg.Currency,
	}

	if stock := text(sel, sels.Stock); stock != "" {
		if n, err := strconv.Atoi(strings.Join(strings.Fields(stock), "")); err == nil {
			c.Stock = n
		}
	}
	if sels.Category != "" {
		sel.Find(sels.Category).Each(func(_ int, crumb *goquery.Selection) {
			if name := strings.TrimSpace(crumb.Text()); name != "" {
				c.CategoryPath = append(c.CategoryPath, name)
			}
		})
	}
	if sels.AttrRow != "" {
		c.Attributes = map[string]string{}
		sel.Find(sels.AttrRow).Each(func(_ int, row *goquery.Selection) {
			name := strings.TrimSpace(row.Find(sels.AttrName).First().Text())
			value := strings.TrimSpace(row.Find(sels.AttrValue).First().Text())
			if name != "" && value != "" {
				c.Attributes[name] = value
			}
		})
	}
	return c
}

func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func attr(sel *goquery.Selection, selector, name string) string {
	if selector == "" {
		return ""
	}
	v, _ := sel.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}
