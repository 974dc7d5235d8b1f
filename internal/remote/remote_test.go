package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	var out struct{ ID string }
	err := DoJSON(context.Background(), NewHTTPClient(time.Second), "create", http.MethodPost, srv.URL, map[string]int{"a": 1}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
}

func TestDoJSON_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad phone"}`))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), NewHTTPClient(time.Second), "create", http.MethodGet, srv.URL, nil, nil)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
	assert.Equal(t, "bad phone", re.Message)
	assert.Contains(t, string(re.Body), "bad phone")
}

func TestDoJSON_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html><head><title>502 Bad Gateway</title></head><body>upstream connect error 10.0.3.7:10000</body></html>`))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), NewHTTPClient(time.Second), "get", http.MethodGet, srv.URL, nil, nil)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadGateway, re.StatusCode)
	assert.Empty(t, re.Message)
	assert.NotContains(t, re.Error(), "10.0.3.7")
	assert.Contains(t, string(re.Body), "502 Bad Gateway")
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message wins", `{"message":"insufficient funds","error":"E1"}`, "insufficient funds"},
		{"string error", `{"error":"bad phone"}`, "bad phone"},
		{"object error", `{"success":false,"error":{"errorCode":"500.001.1001"}}`, ""},
		{"object error with message", `{"message":"insufficient funds","error":{"errorCode":"500.001.1001"}}`, "insufficient funds"},
		{"numeric message", `{"message":42}`, ""},
		{"array", `["nope"]`, ""},
		{"plain text", "upstream down", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMessage([]byte(tt.body)))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", Snippet([]byte("abc"), 10))
	assert.Equal(t, "ab", Snippet([]byte("abcdef"), 2))
	// "é" is two bytes; cutting after the first must not leave half of it.
	assert.Equal(t, "caf", Snippet([]byte("café"), 4))
}

func TestDoJSON_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := DoJSON(context.Background(), NewHTTPClient(time.Second), "get", http.MethodGet, url, nil, nil)
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "get", ne.Op)
}

func TestDoJSON_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DoJSON(ctx, NewHTTPClient(time.Second), "get", http.MethodGet, srv.URL, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
