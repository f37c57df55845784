package main

import (
	"ChatImageStudio/internal/ai"
	"ChatImageStudio/internal/app/dispatcher"
	"ChatImageStudio/internal/app/web"
	"ChatImageStudio/internal/config"
	"ChatImageStudio/internal/metrics"
	"ChatImageStudio/internal/service/image"
	"ChatImageStudio/internal/service/session"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// Веб-интерфейс «Chat + Image»: вкладка чата и вкладка генерации изображений поверх хостинга моделей.
func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow(
		"Starting app",
		"DebugMode", cfg.DebugMode,
		"Provider", cfg.Provider,
		"ChatModel", cfg.ChatModel,
		"ImageModel", cfg.ImageModel,
		"ImageVariant", cfg.ImageVariant,
	)

	m := metrics.New()

	var srv *web.Server
	if cfgErr := cfg.Validate(); cfgErr != nil {
		// Без ключа ни одна вкладка недоступна: показываем одну ошибку конфигурации
		sugar.Errorw("Configuration error", "error", cfgErr)
		srv = web.NewMisconfigured(cfg, cfgErr, m, sugar)
	} else {
		sessions := session.NewStore(m)
		go session.NewCleaner(sessions, sugar).Run(ctx, cfg.SessionTTL)

		d := dispatcher.New(cfg, newClient(cfg, sugar), image.NewFetcher(nil, sugar), sugar, m)
		srv = web.New(cfg, d, sessions, m, sugar)
	}

	// останавливаем сервер сами после сигнала, чтобы дождаться завершения Shutdown
	if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
		sugar.Errorw("failed to start web ui", "error", err)
		return
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown error", "error", err)
	}
	sugar.Infow("server stopped")
}

// newClient выбирает реализацию провайдера по конфигурации.
func newClient(cfg *config.Config, logger *zap.SugaredLogger) ai.Client {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		oClient := openai.NewClient(option.WithAPIKey(cfg.APIKey()))
		return ai.NewOpenAIClient(&oClient, logger)
	case config.ProviderStub:
		return ai.NewStubClient()
	default:
		return ai.NewBytezClient(cfg.BytezBaseURL, cfg.APIKey(), nil, logger)
	}
}
