package ai

import (
	"ChatImageStudio/internal/service/transcript"
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
)

// OpenAIClient реализует Client поверх Chat Completions и Images API OpenAI.
type OpenAIClient struct {
	client *openai.Client
	logger *zap.SugaredLogger
}

func NewOpenAIClient(client *openai.Client, logger *zap.SugaredLogger) *OpenAIClient {
	return &OpenAIClient{client: client, logger: logger}
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if c.client == nil {
		return ChatResponse{}, errors.New("nil openai client")
	}
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            toOpenAIMessages(req.Messages),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
	}

	start := time.Now()
	c.logger.Infow("Запрос в OpenAI...", "model", req.Model, "messages", len(req.Messages))
	resp, err := c.client.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка ответа OpenAI", "duration", dur.String(), "error", err)
		return ChatResponse{}, err
	}
	c.logger.Infow("Ответ OpenAI получен", "duration", dur.String())

	if len(resp.Choices) == 0 {
		return ChatResponse{}, nil
	}
	content := resp.Choices[0].Message.Content
	return ChatResponse{Content: content, HasContent: content != ""}, nil
}

func (c *OpenAIClient) GenerateImages(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	if c.client == nil {
		return ImageResponse{}, errors.New("nil openai client")
	}
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(req.Model),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if req.Options != nil {
		params.N = openai.Int(int64(req.Options.Count))
		params.Size = openai.ImageGenerateParamsSize(req.Options.Size)
	}

	start := time.Now()
	c.logger.Infow("Запрос генерации изображений в OpenAI...", "model", req.Model)
	resp, err := c.client.Images.Generate(ctx, params)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка генерации изображений OpenAI", "duration", dur.String(), "error", err)
		return ImageResponse{}, err
	}
	c.logger.Infow("Изображения OpenAI получены", "duration", dur.String(), "count", len(resp.Data))

	out := make([]string, 0, len(resp.Data))
	for _, img := range resp.Data {
		out = append(out, img.URL)
	}
	return ImageResponse{Outputs: out}, nil
}

func toOpenAIMessages(msgs []transcript.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case transcript.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case transcript.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
