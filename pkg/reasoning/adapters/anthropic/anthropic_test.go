package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/anthropic"
)

const messageResponse = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-5-haiku-latest",
	"content": [
		{"type": "text", "text": "Hello "},
		{"type": "text", "text": "there"}
	],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 12, "output_tokens": 3}
}`

func newAdapter(t *testing.T, url string) *anthropic.Adapter {
	t.Helper()
	adapter, err := anthropic.NewAdapter(anthropic.Config{APIKey: "test-key", BaseURL: url, MaxRetries: 0})
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter_EmptyKey(t *testing.T) {
	adapter, err := anthropic.NewAdapter(anthropic.Config{})
	assert.ErrorIs(t, err, anthropic.ErrEmptyAPIKey)
	assert.Nil(t, adapter)
}

func TestProcess_Success(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageResponse))
	}))
	defer server.Close()

	reply, err := newAdapter(t, server.URL).Process(context.Background(), "hi",
		reasoning.WithSystem("be brief"), reasoning.WithMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.EqualValues(t, 64, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}

func TestProcess_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	reply, err := newAdapter(t, server.URL).Process(context.Background(), "hi")
	assert.Error(t, err)
	assert.Empty(t, reply)
}

func TestStream_Success(t *testing.T) {
	events := []struct{ name, data string }{
		{"message_start", `{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[],"usage":{"input_tokens":5,"output_tokens":0}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"world"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
		}
	}))
	defer server.Close()

	ch, err := newAdapter(t, server.URL).Stream(context.Background(), "hi")
	require.NoError(t, err)

	text, err := reasoning.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestGenerateEmbeddings_Unsupported(t *testing.T) {
	adapter := newAdapter(t, "http://127.0.0.1:1")
	_, err := adapter.GenerateEmbeddings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, anthropic.ErrEmbeddingsUnsupported)
}
