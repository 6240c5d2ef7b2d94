package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsync/partsync/pkg/errors"
)

func TestDoAppliesAuth(t *testing.T) {
	tests := []struct {
		name   string
		auth   Authenticator
		verify func(t *testing.T, r *http.Request)
	}{
		{
			name: "bearer",
			auth: &BearerAuth{},
			verify: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			},
		},
		{
			name: "header",
			auth: &HeaderAuth{Header: "x-api-key"},
			verify: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "tok", r.Header.Get("x-api-key"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.verify(t, r)
				assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			var out map[string]any
			c := New("test", tt.auth, "tok")
			require.NoError(t, c.GetJSON(context.Background(), server.URL, nil, &out))
		})
	}
}

func TestDoClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		auth      bool
	}{
		{name: "rate limited", status: 429, transient: true},
		{name: "server error", status: 503, transient: true},
		{name: "bad request", status: 400, transient: false},
		{name: "unauthorized", status: 401, auth: true},
		{name: "forbidden", status: 403, auth: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := New("test", nil, "").Get(context.Background(), server.URL, nil)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.transient, errors.IsTransient(err))

			var authErr *errors.AuthenticationError
			assert.Equal(t, tt.auth, errors.As(err, &authErr))
		})
	}
}

func TestDoErrorBodyIsLimited(t *testing.T) {
	huge := make([]byte, maxErrorBody*4)
	for i := range huge {
		huge[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(huge)
	}))
	defer server.Close()

	_, err := New("test", nil, "").Get(context.Background(), server.URL, nil)
	require.Error(t, err)

	var ae *errors.AdapterError
	require.True(t, errors.As(err, &ae))
	assert.LessOrEqual(t, len(ae.Message), maxErrorBody)
}

func TestDoCanceledContextPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("test", nil, "").Get(ctx, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestGetAppendsQuery(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := New("test", nil, "").Get(context.Background(), server.URL, url.Values{"q": {"lm358"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "lm358", got)
}
