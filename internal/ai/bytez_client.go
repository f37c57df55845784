package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// BytezClient ходит в хостинг моделей Bytez: POST {base}/models/v2/{model}.
// Ответ имеет вид {"error": ..., "output": ...}, где output — объект (чат) или строка/массив (изображения).
type BytezClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.SugaredLogger
}

func NewBytezClient(baseURL, apiKey string, httpClient *http.Client, logger *zap.SugaredLogger) *BytezClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BytezClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

type bytezChatBody struct {
	Messages any            `json:"messages"`
	Params   map[string]any `json:"params,omitempty"`
	Stream   bool           `json:"stream"`
}

type bytezImageBody struct {
	Text   string         `json:"text"`
	Params map[string]any `json:"params,omitempty"`
}

func (c *BytezClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body := bytezChatBody{
		Messages: req.Messages,
		Params: map[string]any{
			"max_new_tokens": req.MaxTokens,
			"temperature":    req.Temperature,
		},
	}
	out, err := c.run(ctx, req.Model, body)
	if err != nil {
		return ChatResponse{}, err
	}
	content := out.Get("content")
	if !content.Exists() || content.Type == gjson.Null {
		return ChatResponse{}, nil
	}
	return ChatResponse{Content: content.String(), HasContent: true}, nil
}

func (c *BytezClient) GenerateImages(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	body := bytezImageBody{Text: req.Prompt}
	if req.Options != nil {
		body.Params = map[string]any{
			"num_images": req.Options.Count,
			"size":       req.Options.Size,
		}
	}
	out, err := c.run(ctx, req.Model, body)
	if err != nil {
		return ImageResponse{}, err
	}
	return ImageResponse{Outputs: NormalizeOutput(out)}, nil
}

// run выполняет один запрос к модели и возвращает поле output.
func (c *BytezClient) run(ctx context.Context, model string, payload any) (gjson.Result, error) {
	if c.apiKey == "" {
		return gjson.Result{}, errors.New("bytez: empty api key")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("bytez: encode request: %w", err)
	}
	url := c.baseURL + "/models/v2/" + strings.TrimLeft(model, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("bytez: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	c.logger.Infow("Запрос в Bytez...", "model", model)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Errorw("Ошибка запроса Bytez", "model", model, "duration", time.Since(start).String(), "error", err)
		return gjson.Result{}, fmt.Errorf("bytez: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("bytez: read response: %w", err)
	}
	c.logger.Infow("Ответ Bytez получен", "model", model, "status", resp.StatusCode, "duration", time.Since(start).String())

	parsed := gjson.ParseBytes(data)
	if msg := parsed.Get("error"); msg.Exists() && msg.Type != gjson.Null && msg.String() != "" {
		return gjson.Result{}, fmt.Errorf("bytez: %s", msg.String())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("bytez: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.New("bytez: invalid json in response")
	}
	return parsed.Get("output"), nil
}
