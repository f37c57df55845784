package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Провайдеры инференса
const (
	ProviderBytez  = "bytez"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Варианты панели генерации изображений
const (
	VariantBasic    = "basic"    // только промпт, без параметров
	VariantOptions  = "options"  // промпт + количество и размер
	VariantDownload = "download" // как options + загрузка байтов и кнопка скачивания
)

// Модели по умолчанию для каждого провайдера: идентификаторы у провайдеров разные.
var defaultModels = map[string]struct{ chat, image string }{
	ProviderBytez:  {chat: "openai/gpt-4o", image: "google/imagen-4.0-ultra-generate-001"},
	ProviderOpenAI: {chat: "gpt-4o", image: "dall-e-2"},
	ProviderStub:   {chat: "stub-chat", image: "stub-image"},
}

// ErrMissingAPIKey — ключ провайдера не задан; дальнейшая работа невозможна.
var ErrMissingAPIKey = errors.New("api key missing")

type Config struct {
	DebugMode    bool          `env:"DEBUG_MODE"`    //Режим дебага
	Provider     string        `env:"AI_PROVIDER"`   // bytez|openai|stub
	BytezAPIKey  string        `env:"BYTEZ_API_KEY"` // Ключ Bytez, обязателен для провайдера bytez
	BytezBaseURL string        `env:"BYTEZ_BASE_URL"`
	OpenAIAPIKey string        `env:"OPENAI_API_KEY"` // Ключ OpenAI, обязателен для провайдера openai
	ChatModel    string        `env:"CHAT_MODEL"`     // Идентификатор чат-модели
	ImageModel   string        `env:"IMAGE_MODEL"`    // Идентификатор модели изображений
	ImageVariant string        `env:"IMAGE_VARIANT"`  // basic|options|download
	BindAddr     string        `env:"BIND_ADDR"`      // Адрес веб-интерфейса
	SessionTTL   time.Duration `env:"SESSION_TTL"`    // Через сколько неактивная сессия удаляется
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:    false,
		Provider:     ProviderBytez,
		BytezBaseURL: "https://api.bytez.com",
		ImageVariant: VariantBasic,
		BindAddr:     "127.0.0.1:8501",
		SessionTTL:   time.Hour,
	}
}

// NewConfig загружает конфигурацию приложения.
func NewConfig() *Config {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	_ = env.Parse(cfg)

	flag.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "провайдер инференса: bytez|openai|stub")
	flag.StringVar(&cfg.BytezBaseURL, "bytez-base-url", cfg.BytezBaseURL, "базовый адрес API Bytez")
	flag.StringVar(&cfg.ChatModel, "chat-model", cfg.ChatModel, "идентификатор чат-модели (пусто — по умолчанию для провайдера)")
	flag.StringVar(&cfg.ImageModel, "image-model", cfg.ImageModel, "идентификатор модели изображений (пусто — по умолчанию для провайдера)")
	flag.StringVar(&cfg.ImageVariant, "image-variant", cfg.ImageVariant, "вариант панели изображений: basic|options|download")
	flag.StringVar(&cfg.BindAddr, "bind-addr", cfg.BindAddr, "адрес веб-интерфейса (напр. 127.0.0.1:8501)")
	flag.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "время жизни неактивной сессии, напр. 1h")
	flag.Parse()

	cfg.Normalize()
	return cfg
}

// Normalize приводит строковые перечисления к нижнему регистру и подставляет дефолты для пустых значений.
// Незаданные модели берутся из дефолтов выбранного провайдера.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderBytez
	}
	if models, ok := defaultModels[c.Provider]; ok {
		c.ChatModel = strings.TrimSpace(c.ChatModel)
		if c.ChatModel == "" {
			c.ChatModel = models.chat
		}
		c.ImageModel = strings.TrimSpace(c.ImageModel)
		if c.ImageModel == "" {
			c.ImageModel = models.image
		}
	}
	c.ImageVariant = strings.ToLower(strings.TrimSpace(c.ImageVariant))
	switch c.ImageVariant {
	case VariantBasic, VariantOptions, VariantDownload:
	default:
		c.ImageVariant = VariantBasic
	}
}

// APIKeyEnv возвращает имя переменной окружения с ключом выбранного провайдера.
func (c *Config) APIKeyEnv() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "BYTEZ_API_KEY"
}

// APIKey возвращает ключ выбранного провайдера.
func (c *Config) APIKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return strings.TrimSpace(c.OpenAIAPIKey)
	case ProviderStub:
		return "stub"
	default:
		return strings.TrimSpace(c.BytezAPIKey)
	}
}

// Validate проверяет, что ключ провайдера задан. Без ключа ни одна вкладка недоступна.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderBytez, ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.APIKey() == "" {
		return fmt.Errorf("%w: set %s environment variable", ErrMissingAPIKey, c.APIKeyEnv())
	}
	return nil
}
