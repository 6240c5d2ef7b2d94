// Package ti implements the Texas Instruments store adapter. TI uses
// OAuth client credentials; tokens are cached and refreshed shortly
// before expiry.
package ti

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/partsync/partsync/internal/transport"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

const (
	// ID is the stable adapter id.
	ID = "ti"

	defaultBaseURL = "https://transact.ti.com"
	pageSize       = 100

	// errNoExactOPN is TI's error code for "this exact orderable part
	// number does not exist"; the generic search still may find it.
	errNoExactOPN = "ERR-TICOM-INV-API-1002"

	// tokenBuffer refreshes tokens this long before they expire so an
	// in-flight request never races the expiry.
	tokenBuffer = 60 * time.Second
)

// Config carries the adapter settings.
type Config struct {
	ClientKey    string
	ClientSecret string
	Currency     string
	BaseURL      string
}

// Supplier is the TI adapter.
type Supplier struct {
	cfg    Config
	client *transport.Client

	mu         sync.Mutex
	token      string
	validUntil time.Time
}

// New creates the TI adapter.
func New(cfg Config) (*Supplier, error) {
	if cfg.ClientKey == "" || cfg.ClientSecret == "" {
		return nil, &errors.AuthenticationError{
			Service: ID, Method: "oauth",
			Message: "client key and secret are required", Err: errors.ErrAPIKeyRequired,
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	s := &Supplier{cfg: cfg}
	s.client = transport.New(ID, &transport.BearerAuth{}, "")
	return s, nil
}

// ID implements suppliers.Supplier.
func (s *Supplier) ID() string { return ID }

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string { return "Texas Instruments" }

// Search implements suppliers.Supplier. The products API does not treat
// an exact part number specially, so an exact lookup runs first and the
// generic search is the fallback.
func (s *Supplier) Search(ctx context.Context, identifier string) ([]*parts.RawCandidate, error) {
	products, err := s.exactProduct(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products, err = s.genericSearch(ctx, identifier)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*parts.RawCandidate, 0, len(products))
	for _, p := range products {
		out = append(out, s.toCandidate(p))
	}
	return out, nil
}

// exactProduct looks up one orderable part number. A nil, nil return
// means "no exact product, try the generic search".
func (s *Supplier) exactProduct(ctx context.Context, opn string) ([]tiProduct, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var product tiProduct
	endpoint := s.cfg.BaseURL + "/v2/store/products/" + url.PathEscape(opn)
	query := url.Values{
		"exclude-evms": {"true"},
		"currency":     {s.cfg.Currency},
	}
	client := transport.New(ID, &transport.BearerAuth{}, token)
	if err := client.GetJSON(ctx, endpoint, query, &product); err != nil {
		// TI's inventory references parts it does not sell; fetching
		// those yields 403, and unknown OPNs yield 404.
		switch transport.StatusCode(err) {
		case 403, 404:
			return nil, nil
		}
		return nil, err
	}

	for _, apiErr := range product.Errors {
		if apiErr.ErrorCode == errNoExactOPN {
			return nil, nil
		}
	}
	return []tiProduct{product}, nil
}

// genericSearch pages through the products API by generic part number.
func (s *Supplier) genericSearch(ctx context.Context, gpn string) ([]tiProduct, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	client := transport.New(ID, &transport.BearerAuth{}, token)

	var all []tiProduct
	for page := 0; ; page++ {
		var result tiPage
		query := url.Values{
			"gpn":          {gpn},
			"exclude-evms": {"true"},
			"currency":     {s.cfg.Currency},
			"size":         {strconv.Itoa(pageSize)},
			"page":         {strconv.Itoa(page)},
		}
		if err := client.GetJSON(ctx, s.cfg.BaseURL+"/v2/store/products", query, &result); err != nil {
			switch transport.StatusCode(err) {
			case 403, 404:
				return all, nil
			}
			return nil, err
		}
		all = append(all, result.Content...)
		if result.Last {
			return all, nil
		}
	}
}

// accessToken returns a valid OAuth token, requesting a new one only
// when the cached token is within the refresh buffer of expiring.
func (s *Supplier) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.validUntil.Add(-tokenBuffer)) {
		return s.token, nil
	}

	resp, err := s.client.PostForm(ctx, s.cfg.BaseURL+"/v1/oauth/accesstoken", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.cfg.ClientKey},
		"client_secret": {s.cfg.ClientSecret},
	})
	if err != nil {
		return "", err
	}

	var token tiToken
	if err := transport.DecodeJSON(ID, resp, &token); err != nil {
		return "", err
	}
	if token.TokenType != "bearer" {
		return "", &errors.AuthenticationError{
			Service: ID, Method: "oauth",
			Message: fmt.Sprintf("unknown token type %q, expected bearer", token.TokenType),
		}
	}
	s.token = token.AccessToken
	s.validUntil = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return s.token, nil
}

// toCandidate converts one TI product. The configured currency is
// preferred, with USD pricing as the fallback when TI does not quote
// the requested one.
func (s *Supplier) toCandidate(p tiProduct) *parts.RawCandidate {
	pricing := tiPricing{Currency: s.cfg.Currency}
	for _, v := range p.Pricing {
		if v.Currency == s.cfg.Currency {
			pricing = v
			break
		}
		if v.Currency == "USD" {
			pricing = v
		}
	}

	breaks := make(map[int]float64, len(pricing.PriceBreaks))
	for _, b := range pricing.PriceBreaks {
		breaks[b.PriceBreakQuantity] = b.Price
	}

	return &parts.RawCandidate{
		SupplierID:   ID,
		SupplierName: s.Name(),
		SKU:          p.TIPartNumber,
		Manufacturer: s.Name(),
		MPN:          p.TIPartNumber,
		Description:  p.Description,
		SupplierLink: p.BuyNowURL,
		Packaging:    p.PackageCarrier,
		Stock:        p.Quantity,
		Currency:     pricing.Currency,
		PriceBreaks:  breaks,
	}
}

// API response shapes.

type tiProduct struct {
	TIPartNumber   string      `json:"tiPartNumber"`
	Description    string      `json:"description"`
	BuyNowURL      string      `json:"buyNowUrl"`
	Quantity       int         `json:"quantity"`
	PackageCarrier string      `json:"packageCarrier"`
	Pricing        []tiPricing `json:"pricing"`
	Errors         []tiError   `json:"errors"`
}

type tiPricing struct {
	Currency    string         `json:"currency"`
	PriceBreaks []tiPriceBreak `json:"priceBreaks"`
}

type tiPriceBreak struct {
	PriceBreakQuantity int     `json:"priceBreakQuantity"`
	Price              float64 `json:"price"`
}

type tiError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type tiPage struct {
	Content []tiProduct `json:"content"`
	Last    bool        `json:"last"`
}

type tiToken struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
