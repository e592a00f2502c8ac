package transport_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minnojs/pavlovia/pkg/transport"
)

func TestClient_Send_Form(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, transport.ContentTypeForm, r.Header.Get("Content-Type"))
		assert.Equal(t, "pavlovia-go/1.0", r.Header.Get("User-Agent"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc", r.PostForm.Get("pilotToken"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"t1"}`))
	}))
	defer server.Close()

	client := transport.NewClient()
	resp, err := client.Send(context.Background(), transport.Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Form:   url.Values{"pilotToken": {"abc"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"token":"t1"}`, string(resp.Body))
}

func TestClient_Send_DeleteWithBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "isCompleted=true", string(body))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := transport.NewClient()
	_, err := client.Send(context.Background(), transport.Request{
		Method: http.MethodDelete,
		URL:    server.URL,
		Form:   url.Values{"isCompleted": {"true"}},
	})
	assert.NoError(t, err)
}

func TestClient_Send_RedirectRangeIsSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	resp, err := transport.NewClient().Send(context.Background(), transport.Request{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestClient_Send_StatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("experiment is not running\n"))
	}))
	defer server.Close()

	resp, err := transport.NewClient().Send(context.Background(), transport.Request{
		Method: http.MethodPost,
		URL:    server.URL,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)
	assert.True(t, transport.IsStatusError(err))
	assert.Contains(t, err.Error(), "Forbidden (403)")
	assert.Contains(t, err.Error(), "experiment is not running")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var statusErr *transport.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestClient_Send_InvalidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "config.json"},
		{"unsupported scheme", "ftp://example.com/config.json"},
		{"missing host", "http:///config.json"},
	}

	client := transport.NewClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Send(context.Background(), transport.Request{Method: http.MethodGet, URL: tt.url})
			assert.ErrorIs(t, err, transport.ErrInvalidURL)
		})
	}
}

func TestClient_Send_ConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	_, err := transport.NewClient().Send(context.Background(), transport.Request{
		Method: http.MethodGet,
		URL:    serverURL,
	})
	assert.ErrorIs(t, err, transport.ErrRequestFailed)
}

func TestClient_Send_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := transport.NewClient(transport.WithTimeout(50 * time.Millisecond))
	_, err := client.Send(context.Background(), transport.Request{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestClient_Send_HeadersAndHook(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "custom/2.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var results []transport.SendResult
	client := transport.NewClient(
		transport.WithUserAgent("custom/2.0"),
		transport.WithOnSend(func(r transport.SendResult) {
			results = append(results, r)
		}),
	)

	_, err := client.Send(context.Background(), transport.Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, http.StatusOK, results[0].StatusCode)
	assert.Equal(t, http.MethodGet, results[0].Method)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	client := transport.NewClient()
	beacon := transport.NewBeacon(client)

	assert.Same(t, client, transport.Select(client, beacon, false))
	assert.Same(t, beacon, transport.Select(client, beacon, true))
	assert.Same(t, client, transport.Select(client, nil, true))
}
