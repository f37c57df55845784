package ai

import (
	"ChatImageStudio/internal/service/transcript"
	"context"
	"fmt"
	"net/url"
)

// StubClient заглушка, которая не делает реальных запросов
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == transcript.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	return ChatResponse{Content: "запрос получен: " + last, HasContent: true}, nil
}

func (c *StubClient) GenerateImages(_ context.Context, req ImageRequest) (ImageResponse, error) {
	count, size := 1, "512x512"
	if req.Options != nil {
		count, size = req.Options.Count, req.Options.Size
	}
	out := make([]string, 0, count)
	for i := range count {
		out = append(out, fmt.Sprintf("https://placehold.co/%s.png?text=%s-%d", size, url.QueryEscape(req.Prompt), i+1))
	}
	return ImageResponse{Outputs: out}, nil
}
