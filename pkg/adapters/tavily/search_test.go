package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/switchboard/pkg/adapters/tavily"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fastqc adapter content", req["query"])
		assert.EqualValues(t, 2, req["max_results"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "FastQC docs", "url": "https://example.org/fastqc", "content": " Adapter content module. "},
				{"title": "Trimming", "url": "https://example.org/trim", "content": "Use cutadapt."},
				{"title": "Extra", "url": "https://example.org/extra", "content": "ignored"},
			},
		})
	}))
	defer srv.Close()

	s, err := tavily.New("tvly-test", tavily.WithEndpoint(srv.URL))
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), "fastqc adapter content")
	require.NoError(t, err)
	assert.Equal(t, "[1] FastQC docs\nhttps://example.org/fastqc\nAdapter content module.\n\n[2] Trimming\nhttps://example.org/trim\nUse cutadapt.", out)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad key", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			s, err := tavily.New("k", tavily.WithEndpoint(srv.URL))
			require.NoError(t, err)

			_, err = s.Invoke(context.Background(), "q")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	s, err := tavily.New("k", tavily.WithEndpoint(srv.URL))
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := tavily.New("")
	assert.Error(t, err)
}
