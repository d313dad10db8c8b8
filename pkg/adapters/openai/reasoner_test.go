package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/switchboard/pkg/adapters/openai"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReasoner(t *testing.T, handler http.HandlerFunc) *openai.Reasoner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return openai.New([]option.RequestOption{
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	})
}

func completion(message map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       message,
		}},
	}
}

var decisionReq = ports.DecisionRequest{
	Node:         "supervisor",
	Instructions: "Route the request.",
	History:      []domain.Message{domain.UserMessage("Plot GC content")},
	Choices:      []ports.Choice{{Name: "coder"}, {Name: "researcher"}},
}

func TestReasoner_Decide(t *testing.T) {
	r := newReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		choice := body["tool_choice"].(map[string]any)
		assert.Equal(t, "route", choice["function"].(map[string]any)["name"])
		tools := body["tools"].([]any)
		require.Len(t, tools, 1)

		messages := body["messages"].([]any)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(map[string]any{
			"role": "assistant",
			"tool_calls": []map[string]any{{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "route",
					"arguments": `{"next":"coder","reason":"needs a plot"}`,
				},
			}},
		}))
	})

	d, err := r.Decide(context.Background(), decisionReq)
	require.NoError(t, err)
	assert.Equal(t, ports.Decision{Choice: "coder", Reason: "needs a plot"}, d)
}

func TestReasoner_DecideWithoutToolCall(t *testing.T) {
	r := newReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(map[string]any{"role": "assistant", "content": "coder"}))
	})

	_, err := r.Decide(context.Background(), decisionReq)
	assert.Error(t, err)
}

func TestReasoner_Generate(t *testing.T) {
	r := newReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(map[string]any{"role": "assistant", "content": "import matplotlib"}))
	})

	out, err := r.Generate(context.Background(), ports.GenerateRequest{Node: "coder", Instructions: "Write code."})
	require.NoError(t, err)
	assert.Equal(t, "import matplotlib", out)
}

func TestReasoner_GenerateStream(t *testing.T) {
	r := newReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Sample 3 ", "is an outlier."} {
			chunk := map[string]any{
				"id": "c", "object": "chat.completion.chunk", "created": 1, "model": "gpt-4o-mini",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": part}}},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var fragments []string
	out, err := r.GenerateStream(context.Background(), ports.GenerateRequest{Node: "researcher"}, func(s string) {
		fragments = append(fragments, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Sample 3 is an outlier.", out)
	assert.Equal(t, []string{"Sample 3 ", "is an outlier."}, fragments)
}

func TestReasoner_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			r := newReasoner(t, func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
			})

			_, err := r.Generate(context.Background(), ports.GenerateRequest{Node: "coder"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}
