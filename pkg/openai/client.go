package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bigkaiyoh/Hinotama/config"
)

// Client OpenAI API クライアント
// アシスタント API（スレッド・メッセージ・ラン）と
// チャット補完 API（画像文字起こし）のみを扱う。
// 通信は go-openai に委譲し、本パッケージの型へ変換して返す
type Client struct {
	api *goopenai.Client
}

// NewClient Client を生成する
func NewClient(cfg *config.OpenAIConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	conf := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}
	conf.AssistantVersion = "v2"

	return &Client{api: goopenai.NewClientWithConfig(conf)}
}

// UpstreamError 上流 API の非成功レスポンス
// ステータスコードと本文をそのまま呼び出し元へ伝える
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai API error: status %d: %s", e.StatusCode, e.Body)
}

// wrapErr go-openai のエラー型を *UpstreamError へ揃える
// API 起因でないエラー（コンテキスト打ち切り等）はそのまま返す
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}

// ── アシスタント API の型 ──

// Assistant アシスタント定義
type Assistant struct {
	ID    string
	Name  string
	Model string
}

// Thread 会話スレッド
type Thread struct {
	ID string
}

// Run アシスタントの実行
type Run struct {
	ID       string
	ThreadID string
	Status   string
}

// ラン状態
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
	RunStatusExpired    = "expired"
)

// Message スレッド内のメッセージ
type Message struct {
	ID        string
	Role      string
	CreatedAt int64
	Content   []MessageContent
}

// MessageContent メッセージ内容（text のみ使用）
type MessageContent struct {
	Type string
	Text *MessageText
}

// MessageText テキスト本文
type MessageText struct {
	Value string
}

// Text 最初のテキスト内容を返す（無ければ空文字）
func (m *Message) Text() string {
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			return c.Text.Value
		}
	}
	return ""
}

// MessageList メッセージ一覧（API は新しい順で返す）
type MessageList struct {
	Data []Message
}

// ── チャット補完 API の型 ──

// ChatCompletionRequest マルチモーダルチャット補完リクエスト
type ChatCompletionRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// ChatMessage チャットメッセージ（複合コンテンツ）
type ChatMessage struct {
	Role    string
	Content []ChatContent
}

// ChatContent テキストまたは画像のコンテンツパート
type ChatContent struct {
	Type     string
	Text     string
	ImageURL *ImageURL
}

// ImageURL base64 データ URI または URL
type ImageURL struct {
	URL string
}

// ChatCompletionResponse チャット補完レスポンス
type ChatCompletionResponse struct {
	Choices []ChatChoice
}

// ChatChoice 補完候補
type ChatChoice struct {
	Message ChatResponseMessage
}

// ChatResponseMessage 補完レスポンスのメッセージ（content は文字列）
type ChatResponseMessage struct {
	Role    string
	Content string
}

// ── API 呼び出し ──

// RetrieveAssistant アシスタント定義を取得する
func (c *Client) RetrieveAssistant(ctx context.Context, assistantID string) (*Assistant, error) {
	a, err := c.api.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return nil, wrapErr(err)
	}
	name := ""
	if a.Name != nil {
		name = *a.Name
	}
	return &Assistant{ID: a.ID, Name: name, Model: a.Model}, nil
}

// CreateThread 新しい会話スレッドを作成する
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	t, err := c.api.CreateThread(ctx, goopenai.ThreadRequest{})
	if err != nil {
		return nil, wrapErr(err)
	}
	return &Thread{ID: t.ID}, nil
}

// CreateMessage スレッドへメッセージを追加する
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	m, err := c.api.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    role,
		Content: content,
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return convertMessage(m), nil
}

// CreateRun スレッドに対するアシスタントのランを開始する
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	r, err := c.api.CreateRun(ctx, threadID, goopenai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, wrapErr(err)
	}
	return convertRun(r), nil
}

// RetrieveRun ランの状態を取得する
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	r, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return convertRun(r), nil
}

// ListMessages スレッドのメッセージ一覧を取得する（新しい順）
func (c *Client) ListMessages(ctx context.Context, threadID string) (*MessageList, error) {
	list, err := c.api.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, wrapErr(err)
	}
	out := &MessageList{Data: make([]Message, 0, len(list.Messages))}
	for _, m := range list.Messages {
		out.Data = append(out.Data, *convertMessage(m))
	}
	return out, nil
}

// CreateChatCompletion チャット補完を 1 回実行する
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		parts := make([]goopenai.ChatMessagePart, 0, len(msg.Content))
		for _, part := range msg.Content {
			switch part.Type {
			case "image_url":
				parts = append(parts, goopenai.ChatMessagePart{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: part.ImageURL.URL},
				})
			default:
				parts = append(parts, goopenai.ChatMessagePart{
					Type: goopenai.ChatMessagePartTypeText,
					Text: part.Text,
				})
			}
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:         msg.Role,
			MultiContent: parts,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	out := &ChatCompletionResponse{Choices: make([]ChatChoice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Message: ChatResponseMessage{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
		})
	}
	return out, nil
}

// ── 変換ヘルパー ──

func convertRun(r goopenai.Run) *Run {
	return &Run{ID: r.ID, ThreadID: r.ThreadID, Status: string(r.Status)}
}

func convertMessage(m goopenai.Message) *Message {
	out := &Message{
		ID:        m.ID,
		Role:      m.Role,
		CreatedAt: int64(m.CreatedAt),
		Content:   make([]MessageContent, 0, len(m.Content)),
	}
	for _, c := range m.Content {
		mc := MessageContent{Type: c.Type}
		if c.Text != nil {
			mc.Text = &MessageText{Value: c.Text.Value}
		}
		out.Content = append(out.Content, mc)
	}
	return out
}
