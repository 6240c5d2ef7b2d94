package ti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/errors"
)

type tiServer struct {
	*httptest.Server

	tokenRequests atomic.Int32
	exact         func(w http.ResponseWriter, r *http.Request)
	search        func(w http.ResponseWriter, r *http.Request)
}

func newTIServer(t *testing.T) *tiServer {
	t.Helper()
	ts := &tiServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/accesstoken", func(w http.ResponseWriter, r *http.Request) {
		ts.tokenRequests.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "key", r.FormValue("client_id"))
		assert.Equal(t, "secret", r.FormValue("client_secret"))
		writeJSON(w, map[string]any{
			"token_type":   "bearer",
			"access_token": "token-1",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/store/products/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		ts.exact(w, r)
	})
	mux.HandleFunc("/v2/store/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		ts.search(w, r)
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func product(opn string, stock int) map[string]any {
	return map[string]any{
		"tiPartNumber":   opn,
		"description":    "Single inverter gate",
		"buyNowUrl":      "https://www.ti.com/product/" + opn,
		"quantity":       stock,
		"packageCarrier": "CUT TAPE",
		"pricing": []map[string]any{
			{
				"currency": "EUR",
				"priceBreaks": []map[string]any{
					{"priceBreakQuantity": 1, "price": 0.11},
				},
			},
			{
				"currency": "USD",
				"priceBreaks": []map[string]any{
					{"priceBreakQuantity": 1, "price": 0.12},
					{"priceBreakQuantity": 100, "price": 0.05},
				},
			},
		},
	}
}

func newSupplier(t *testing.T, server *tiServer, currency string) *Supplier {
	t.Helper()
	s, err := New(Config{
		ClientKey: "key", ClientSecret: "secret",
		Currency: currency, BaseURL: server.URL,
	})
	require.NoError(t, err)
	return s
}

func TestSearchExactHit(t *testing.T) {
	server := newTIServer(t)
	server.exact = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/store/products/SN74LVC1G04DBVR", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		writeJSON(w, product("SN74LVC1G04DBVR", 25000))
	}

	s := newSupplier(t, server, "USD")
	candidates, err := s.Search(context.Background(), "SN74LVC1G04DBVR")
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "ti", c.SupplierID)
	assert.Equal(t, "SN74LVC1G04DBVR", c.SKU)
	assert.Equal(t, "SN74LVC1G04DBVR", c.MPN)
	assert.Equal(t, "Texas Instruments", c.Manufacturer)
	assert.Equal(t, 25000, c.Stock)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, map[int]float64{1: 0.12, 100: 0.05}, c.PriceBreaks)
}

func TestSearchPrefersConfiguredCurrency(t *testing.T) {
	server := newTIServer(t)
	server.exact = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, product("SN74LVC1G04DBVR", 25000))
	}

	s := newSupplier(t, server, "EUR")
	candidates, err := s.Search(context.Background(), "SN74LVC1G04DBVR")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "EUR", candidates[0].Currency)
	assert.Equal(t, map[int]float64{1: 0.11}, candidates[0].PriceBreaks)
}

func TestSearchFallsBackToGenericSearch(t *testing.T) {
	server := newTIServer(t)
	server.exact = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"errors": []map[string]any{
				{"errorCode": "ERR-TICOM-INV-API-1002", "message": "no such OPN"},
			},
		})
	}
	pages := 0
	server.search = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SN74LVC1G04", r.URL.Query().Get("gpn"))
		switch r.URL.Query().Get("page") {
		case "0":
			writeJSON(w, map[string]any{
				"content": []map[string]any{product("SN74LVC1G04DBVR", 25000)},
				"last":    false,
			})
		case "1":
			writeJSON(w, map[string]any{
				"content": []map[string]any{product("SN74LVC1G04DCKR", 9000)},
				"last":    true,
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
		pages++
	}

	s := newSupplier(t, server, "USD")
	candidates, err := s.Search(context.Background(), "SN74LVC1G04")
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, candidates, 2)
	assert.Equal(t, "SN74LVC1G04DBVR", candidates[0].SKU)
	assert.Equal(t, "SN74LVC1G04DCKR", candidates[1].SKU)
}

func TestSearchToleratesForbiddenProducts(t *testing.T) {
	server := newTIServer(t)
	server.exact = func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not sold here", http.StatusForbidden)
	}
	server.search = func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not sold here", http.StatusForbidden)
	}

	s := newSupplier(t, server, "USD")
	candidates, err := s.Search(context.Background(), "LM358")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestAccessTokenCached(t *testing.T) {
	server := newTIServer(t)
	server.exact = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, product("SN74LVC1G04DBVR", 25000))
	}

	s := newSupplier(t, server, "USD")
	for i := 0; i < 3; i++ {
		_, err := s.Search(context.Background(), "SN74LVC1G04DBVR")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), server.tokenRequests.Load())
}

func TestAccessTokenRejectsUnknownType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"token_type": "mac", "access_token": "x", "expires_in": 60})
	}))
	defer server.Close()

	s, err := New(Config{ClientKey: "key", ClientSecret: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "X")
	require.Error(t, err)
	var authErr *errors.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{ClientKey: "key"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAPIKeyRequired))
}
