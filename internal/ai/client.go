package ai

import (
	"ChatImageStudio/internal/service/transcript"
	"context"
)

// Client интерфейс для взаимодействия с провайдером инференса. Все реализации должны быть взаимозаменяемыми.
type Client interface {
	// Chat отправляет весь диалог в чат-модель и возвращает ответ ассистента.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// GenerateImages отправляет промпт в модель изображений. Ответ уже нормализован в список.
	GenerateImages(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

type ChatRequest struct {
	Model       string
	Messages    []transcript.Message
	MaxTokens   int
	Temperature float64
}

// ChatResponse — ответ чат-модели. HasContent=false, если провайдер не вернул поле content.
type ChatResponse struct {
	Content    string
	HasContent bool
}

// ImageOptions — дополнительные параметры генерации; поддерживаются не всеми моделями.
type ImageOptions struct {
	Count int
	Size  string
}

// ImageRequest — запрос генерации. Options == nil — параметры не отправляются.
type ImageRequest struct {
	Model   string
	Prompt  string
	Options *ImageOptions
}

// ImageResponse — результаты генерации в виде списка (обычно URL). Элементы ещё не проверены.
type ImageResponse struct {
	Outputs []string
}
