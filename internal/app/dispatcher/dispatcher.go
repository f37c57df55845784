package dispatcher

import (
	"ChatImageStudio/internal/ai"
	"ChatImageStudio/internal/config"
	"ChatImageStudio/internal/metrics"
	"ChatImageStudio/internal/service/image"
	"ChatImageStudio/internal/service/transcript"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Параметры генерации чата фиксированы и не настраиваются пользователем.
const (
	ChatMaxTokens   = 300
	ChatTemperature = 0.7

	NoContentPlaceholder = "⚠️ No content returned"

	MinImageCount = 1
	MaxImageCount = 4
)

// ImageSizes — допустимые размеры для вариантов с параметрами.
var ImageSizes = []string{"256x256", "512x512", "1024x1024"}

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrEmptyPrompt    = errors.New("empty prompt")
	ErrInvalidOptions = errors.New("invalid image options")
	ErrNoImages       = errors.New("no images returned")
)

// ProviderError — любая ошибка транспорта или провайдера. Подтипы не различаются.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "API Error: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// ImageFetcher скачивает картинку по URL (вариант download).
type ImageFetcher interface {
	Fetch(ctx context.Context, url string, index int) (image.Fetched, error)
}

// ImageRequest — промпт и параметры одного нажатия «Generate».
type ImageRequest struct {
	Prompt  string
	Options ai.ImageOptions
}

// RenderedImage — элемент результата, прошедший проверку URL.
type RenderedImage struct {
	Index   int
	URL     string
	Fetched *image.Fetched // только для варианта download и только при успешном скачивании
}

// ImageResult — готовый к показу результат генерации.
type ImageResult struct {
	Images   []RenderedImage
	Warnings []string
}

type Dispatcher struct {
	client     ai.Client
	fetcher    ImageFetcher
	chatModel  string
	imageModel string
	variant    string
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
}

func New(cfg *config.Config, client ai.Client, fetcher ImageFetcher, logger *zap.SugaredLogger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		client:     client,
		fetcher:    fetcher,
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		variant:    cfg.ImageVariant,
		logger:     logger,
		metrics:    m,
	}
}

func (d *Dispatcher) Variant() string { return d.variant }

// SupportsOptions — принимает ли выбранный вариант количество и размер.
func (d *Dispatcher) SupportsOptions() bool {
	return d.variant == config.VariantOptions || d.variant == config.VariantDownload
}

func (d *Dispatcher) SupportsDownload() bool { return d.variant == config.VariantDownload }

// Chat добавляет реплику пользователя, отправляет весь диалог и добавляет ответ ассистента.
// Реплика пользователя остаётся в диалоге даже при ошибке провайдера.
func (d *Dispatcher) Chat(ctx context.Context, t *transcript.Transcript, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	t.Append(transcript.RoleUser, text)

	start := time.Now()
	resp, err := d.client.Chat(ctx, ai.ChatRequest{
		Model:       d.chatModel,
		Messages:    t.All(),
		MaxTokens:   ChatMaxTokens,
		Temperature: ChatTemperature,
	})
	d.metrics.ObserveProvider(metrics.KindChat, start, err)
	if err != nil {
		d.logger.Warnw("Ошибка запроса к чат-модели", "model", d.chatModel, "error", err)
		return "", &ProviderError{Err: err}
	}

	reply := resp.Content
	if !resp.HasContent || reply == "" {
		reply = NoContentPlaceholder
	}
	t.Append(transcript.RoleAssistant, reply)
	return reply, nil
}

// ValidateOptions проверяет количество и размер для вариантов с параметрами.
func ValidateOptions(o ai.ImageOptions) error {
	if o.Count < MinImageCount || o.Count > MaxImageCount {
		return fmt.Errorf("%w: count must be between %d and %d, got %d", ErrInvalidOptions, MinImageCount, MaxImageCount, o.Count)
	}
	if !slices.Contains(ImageSizes, o.Size) {
		return fmt.Errorf("%w: size must be one of %s, got %q", ErrInvalidOptions, strings.Join(ImageSizes, ", "), o.Size)
	}
	return nil
}

// IsDisplayable — можно ли передавать элемент результата на отрисовку.
func IsDisplayable(entry string) bool { return strings.HasPrefix(entry, "http") }

// GenerateImages отправляет промпт в модель изображений и проверяет каждый элемент результата.
// Некорректные элементы дают по одному предупреждению и не прерывают обработку остальных.
func (d *Dispatcher) GenerateImages(ctx context.Context, req ImageRequest) (ImageResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return ImageResult{}, ErrEmptyPrompt
	}

	aiReq := ai.ImageRequest{Model: d.imageModel, Prompt: req.Prompt}
	if d.SupportsOptions() {
		if err := ValidateOptions(req.Options); err != nil {
			return ImageResult{}, err
		}
		opts := req.Options
		aiReq.Options = &opts
	}

	start := time.Now()
	resp, err := d.client.GenerateImages(ctx, aiReq)
	d.metrics.ObserveProvider(metrics.KindImage, start, err)
	if err != nil {
		d.logger.Warnw("Ошибка запроса генерации изображений", "model", d.imageModel, "error", err)
		return ImageResult{}, &ProviderError{Err: err}
	}
	if len(resp.Outputs) == 0 {
		return ImageResult{}, ErrNoImages
	}

	var res ImageResult
	for i, entry := range resp.Outputs {
		if !IsDisplayable(entry) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Invalid URL: %s", entry))
			continue
		}
		img := RenderedImage{Index: i, URL: entry}
		if d.SupportsDownload() && d.fetcher != nil {
			fetched, ferr := d.fetcher.Fetch(ctx, entry, i)
			if ferr != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to fetch image %d: %v", i+1, ferr))
				continue
			}
			img.Fetched = &fetched
		}
		res.Images = append(res.Images, img)
	}
	d.metrics.AddImageWarnings(len(res.Warnings))
	if len(res.Warnings) > 0 {
		d.logger.Infow("В ответе есть невалидные элементы", "warnings", len(res.Warnings), "images", len(res.Images))
	}
	return res, nil
}

// UserMessage превращает ошибку в текст для показа пользователю.
func UserMessage(err error) string {
	var perr *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyPrompt):
		return "Please enter a prompt!"
	case errors.Is(err, ErrEmptyMessage):
		return "Please enter a message!"
	case errors.Is(err, ErrNoImages):
		return "⚠️ No images returned."
	case errors.As(err, &perr):
		return perr.Error()
	default:
		return err.Error()
	}
}

// IsWarning — ошибка валидации, блокирующая одно действие (показывается как предупреждение).
func IsWarning(err error) bool {
	return errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrInvalidOptions)
}
