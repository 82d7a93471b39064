package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gptbot/internal/chatgpt"
	"gptbot/internal/conversation"
	"gptbot/internal/gate"
	"gptbot/internal/telegram"
	"gptbot/internal/usage"
	"gptbot/pkg/config"

	"github.com/sirupsen/logrus"
)

func main() {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	cfg := config.LoadConfig()

	ledger := usage.NewLedger(cfg, usage.SystemClock())
	conversations := conversation.NewBuffer(cfg.MaxHistory)
	chatgptService := chatgpt.NewService(cfg)
	requestGate := gate.NewGate(cfg, ledger, conversations, chatgptService)

	telegramHandler, err := telegram.NewHandler(cfg, requestGate, ledger, conversations)
	if err != nil {
		logrus.Fatalf("Ошибка при инициализации Telegram бота: %v", err)
	}

	logrus.Infof("Конфигурация: история %d обменов, лимиты: %d сообщений/день, %d токенов/день, %d сообщений/час, %d сообщений/минуту, длина сообщения до %d",
		cfg.MaxHistory, cfg.DailyMessageLimit, cfg.DailyTokenLimit,
		cfg.HourlyMessageLimit, cfg.RateLimitPerMinute, cfg.MaxMessageLength)
	if cfg.AuthorizedUserID != 0 {
		logrus.Infof("Доступ ограничен пользователем %d", cfg.AuthorizedUserID)
	} else {
		logrus.Info("Бот доступен всем пользователям")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", telegramHandler.HandleWebhook)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"timestamp":   time.Now().Format(time.RFC3339),
			"activeUsers": conversations.ActiveUsers(),
		})
	})

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: mux,
	}

	go func() {
		logrus.Infof("Сервер запущен на порту %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Ошибка при запуске сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Завершение работы сервера...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Ошибка при остановке сервера: %v", err)
	}

	logrus.Info("Сервер остановлен")
}
