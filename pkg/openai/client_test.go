package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaiyoh/Hinotama/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
	})
}

func TestCreateThread_SendsAuthAndBetaHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/threads", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		w.Write([]byte(`{"id":"thread_abc"}`))
	})

	thread, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", thread.ID)
}

func TestCreateChatCompletion_NoBetaHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("OpenAI-Beta"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"転写結果"}}]}`))
	})

	resp, err := c.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ChatContent{
				{Type: "text", Text: "Please transcribe the handwritten text in this image."},
				{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/jpeg;base64,AAAA"}},
			},
		}},
		MaxTokens: 300,
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "転写結果", resp.Choices[0].Message.Content)
}

func TestNonSuccessReturnsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := c.RetrieveAssistant(context.Background(), "asst_x")
	require.Error(t, err)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.Contains(t, ue.Body, "rate limited")
}

// エラー本文が JSON でない場合もステータスコードは保持される
func TestNonJSONErrorBodyKeepsStatusCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.CreateThread(context.Background())
	require.Error(t, err)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestListMessages_ParsesNewestFirstListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thread_abc/messages", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":"msg_2","role":"assistant","created_at":200,"content":[{"type":"text","text":{"value":"フィードバック"}}]},
			{"id":"msg_1","role":"user","created_at":100,"content":[{"type":"text","text":{"value":"作文"}}]}
		]}`))
	})

	list, err := c.ListMessages(context.Background(), "thread_abc")
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "assistant", list.Data[0].Role)
	assert.Equal(t, "フィードバック", list.Data[0].Text())
	assert.Equal(t, "作文", list.Data[1].Text())
}

func TestMessage_Text_Empty(t *testing.T) {
	m := &Message{Content: []MessageContent{{Type: "image_file"}}}
	assert.Empty(t, m.Text())
}
