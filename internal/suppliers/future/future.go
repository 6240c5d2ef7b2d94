// Package future implements the Future Electronics adapter. The API
// authenticates with a license key header and returns part data as a
// flat attribute bag.
package future

import (
	"context"
	"net/url"
	"strings"

	"github.com/partsync/partsync/internal/transport"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

const (
	// ID is the stable adapter id.
	ID = "future"

	defaultBaseURL = "https://api.futureelectronics.com/api"

	// licenseHeader carries the API key.
	licenseHeader = "x-orbweaver-licensekey"
)

// Lookup kinds supported by the part lookup endpoint.
const (
	LookupExact      = "exact"
	LookupContains   = "contains"
	LookupStartsWith = "starts_with"
)

// metaAttributes are attribute-bag entries that describe the offer, not
// the part. They are mapped onto candidate fields and withheld from the
// parameter set. The localized description key is handled separately.
var metaAttributes = map[string]bool{
	"manufacturerName": true,
	"packageType":      true,
}

// Config carries the adapter settings. Language selects the localized
// description attribute, e.g. "description (en)".
type Config struct {
	APIKey   string
	Language string
	BaseURL  string
}

// Supplier is the Future Electronics adapter.
type Supplier struct {
	cfg     Config
	descKey string
	client  *transport.Client
}

// New creates the Future Electronics adapter.
func New(cfg Config) (*Supplier, error) {
	if cfg.APIKey == "" {
		return nil, &errors.AuthenticationError{
			Service: ID, Method: "api_key",
			Message: "license key is required", Err: errors.ErrAPIKeyRequired,
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Supplier{
		cfg:     cfg,
		descKey: "description (" + strings.ToLower(cfg.Language) + ")",
		client:  transport.New(ID, &transport.HeaderAuth{Header: licenseHeader}, cfg.APIKey),
	}, nil
}

// ID implements suppliers.Supplier.
func (s *Supplier) ID() string { return ID }

// Name implements suppliers.Supplier.
func (s *Supplier) Name() string { return "Future Electronics" }

// Search implements suppliers.Supplier.
func (s *Supplier) Search(ctx context.Context, identifier string) ([]*parts.RawCandidate, error) {
	var result feLookup
	query := url.Values{
		"part_number": {identifier},
		"lookup_type": {LookupContains},
	}
	if err := s.client.GetJSON(ctx, s.cfg.BaseURL+"/v1/pim-future/lookup", query, &result); err != nil {
		if transport.StatusCode(err) == 404 {
			return nil, nil
		}
		return nil, err
	}

	out := make([]*parts.RawCandidate, 0, len(result.Offers))
	for _, offer := range result.Offers {
		out = append(out, s.toCandidate(offer))
	}
	return out, nil
}

// toCandidate converts one offer into the raw candidate schema.
func (s *Supplier) toCandidate(offer feOffer) *parts.RawCandidate {
	attrs := make(map[string]string, len(offer.PartAttributes))
	params := map[string]string{}
	for _, a := range offer.PartAttributes {
		attrs[a.Name] = a.Value
		if !metaAttributes[a.Name] && a.Name != s.descKey {
			params[a.Name] = a.Value
		}
	}

	c := &parts.RawCandidate{
		SupplierID:   ID,
		SupplierName: "Future Electronics",
		SKU:          offer.PartID.SellerPartNumber,
		Manufacturer: attrs["manufacturerName"],
		MPN:          offer.PartID.MPN,
		Description:  attrs[s.descKey],
		SupplierLink: offer.PartID.WebURL,
		Packaging:    attrs["packageType"],
		Stock:        offer.Quantities.QuantityAvailable,
		Currency:     offer.Currency.CurrencyCode,
		PriceBreaks:  foldPricing(offer),
		Attributes:   params,
	}

	// Image variants are ordered smallest to biggest; take the biggest.
	if n := len(offer.Images); n > 0 {
		c.ImageURL = offer.Images[n-1].URL
	}
	for _, d := range offer.Documents {
		if strings.EqualFold(d.Type, "datasheet") {
			c.DatasheetURL = d.URL
			break
		}
	}
	return c
}

// foldPricing drops price breaks below the minimum order quantity and
// anchors a break at the minimum itself. With no breaks below the MOQ
// the downstream per-quantity price math stays correct without the
// catalog needing an MOQ concept.
func foldPricing(offer feOffer) map[int]float64 {
	minimum := offer.Quantities.QuantityMinimum
	pricing := map[int]float64{}

	var bestAtMinimum *float64
	for _, v := range offer.Pricing {
		if v.QuantityFrom <= minimum {
			if bestAtMinimum == nil || *bestAtMinimum > v.UnitPrice {
				price := v.UnitPrice
				bestAtMinimum = &price
			}
		} else {
			pricing[v.QuantityFrom] = v.UnitPrice
		}
	}
	if bestAtMinimum != nil {
		pricing[minimum] = *bestAtMinimum
	}
	return pricing
}

// API response shapes.

type feLookup struct {
	Offers []feOffer `json:"offers"`
}

type feOffer struct {
	PartID         fePartID      `json:"part_id"`
	PartAttributes []feAttribute `json:"part_attributes"`
	Quantities     feQuantities  `json:"quantities"`
	Pricing        []fePricing   `json:"pricing"`
	Images         []feImage     `json:"images"`
	Documents      []feDocument  `json:"documents"`
	Currency       feCurrency    `json:"currency"`
}

type fePartID struct {
	MPN              string `json:"mpn"`
	SellerPartNumber string `json:"seller_part_number"`
	WebURL           string `json:"web_url"`
}

type feAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type feQuantities struct {
	QuantityAvailable int `json:"quantity_available"`
	QuantityMinimum   int `json:"quantity_minimum"`
}

type fePricing struct {
	QuantityFrom int     `json:"quantity_from"`
	UnitPrice    float64 `json:"unit_price"`
}

type feImage struct {
	URL string `json:"url"`
}

type feDocument struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type feCurrency struct {
	CurrencyCode string `json:"currency_code"`
}
