package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fetched — сырые байты изображения, скачанные по URL, для показа и скачивания.
type Fetched struct {
	URL         string
	Filename    string
	ContentType string
	Data        []byte
}

// DataURL возвращает картинку как data URL для встраивания в страницу.
func (f Fetched) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", f.ContentType, base64.StdEncoding.EncodeToString(f.Data))
}

// Filename возвращает имя файла для скачивания по индексу результата (с нуля).
func Filename(index int) string {
	return fmt.Sprintf("generated_image_%d.png", index+1)
}

// MaxImageBytes — предел размера одной скачиваемой картинки.
const MaxImageBytes int64 = 20 << 20

// ErrImageTooLarge — тело ответа больше MaxImageBytes.
var ErrImageTooLarge = errors.New("image too large")

// Fetcher скачивает изображения обычным блокирующим GET.
type Fetcher struct {
	client   *http.Client
	logger   *zap.SugaredLogger
	maxBytes int64
}

func NewFetcher(client *http.Client, logger *zap.SugaredLogger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, logger: logger, maxBytes: MaxImageBytes}
}

// Fetch скачивает картинку; любой ответ кроме 2xx считается ошибкой.
func (f *Fetcher) Fetch(ctx context.Context, url string, index int) (Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fetched{}, err
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warnw("Не удалось скачать изображение", "url", url, "error", err)
		return Fetched{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warnw("Неуспешный статус при скачивании изображения", "url", url, "status", resp.StatusCode)
		return Fetched{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	// читаем на байт больше предела, чтобы отличить «ровно предел» от превышения
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Fetched{}, err
	}
	if int64(len(data)) > f.maxBytes {
		f.logger.Warnw("Изображение превышает допустимый размер", "url", url, "limit", f.maxBytes)
		return Fetched{}, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return Fetched{}, fmt.Errorf("image is empty: %s", url)
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	f.logger.Infow("Изображение скачано", "url", url, "bytes", len(data), "duration", time.Since(start).String())

	return Fetched{
		URL:         url,
		Filename:    Filename(index),
		ContentType: contentType,
		Data:        data,
	}, nil
}
