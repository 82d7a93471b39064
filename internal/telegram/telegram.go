package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gptbot/internal/conversation"
	"gptbot/internal/gate"
	"gptbot/internal/usage"
	"gptbot/pkg/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	bot           *tgbotapi.BotAPI
	cfg           *config.Config
	gate          *gate.Gate
	ledger        *usage.Ledger
	conversations *conversation.Buffer
}

func NewHandler(
	cfg *config.Config,
	requestGate *gate.Gate,
	ledger *usage.Ledger,
	conversations *conversation.Buffer,
) (*Handler, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка при инициализации Telegram бота: %v", err)
	}

	logrus.Infof("Telegram бот запущен: %s", bot.Self.UserName)

	return &Handler{
		bot:           bot,
		cfg:           cfg,
		gate:          requestGate,
		ledger:        ledger,
		conversations: conversations,
	}, nil
}

func (h *Handler) GetBotInfo() *tgbotapi.User {
	return &h.bot.Self
}

func (h *Handler) SetupWebhook() error {
	webhookURL := fmt.Sprintf("https://%s:%s/webhook", h.cfg.ServerHost, h.cfg.ServerPort)

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("ошибка при создании конфига вебхука: %w", err)
	}

	if _, err := h.bot.Request(webhookConfig); err != nil {
		return fmt.Errorf("ошибка при установке вебхука: %v", err)
	}

	return nil
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := h.bot.HandleUpdate(r)
	if err != nil {
		logrus.Errorf("Ошибка при обработке обновления: %v", err)
		return
	}

	h.handleUpdate(*update)
}

func (h *Handler) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := h.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("ошибка при отправке сообщения: %v", err)
	}
	return nil
}

func (h *Handler) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.bot.Send(msg); err != nil {
		logrus.Errorf("Ошибка при отправке сообщения: %v", err)
	}
}

func (h *Handler) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	// Один сбойный запрос не должен ронять процесс: паника ловится здесь,
	// получает идентификатор инцидента и уходит в лог и пользователю.
	defer func() {
		if r := recover(); r != nil {
			incidentID := uuid.NewString()
			logrus.WithField("incident_id", incidentID).Errorf("Паника при обработке сообщения пользователя %d: %v", userID, r)
			h.SendMessage(chatID, fmt.Sprintf("❌ Произошла непредвиденная ошибка. Попробуйте еще раз.\n\nID инцидента: %s\n\nЕсли ошибка повторяется, сообщите администратору бота.", incidentID))
		}
	}()

	if update.Message.IsCommand() {
		h.handleCommand(update)
		return
	}

	switch {
	case update.Message.Photo != nil:
		h.SendMessage(chatID, "📸 Вижу фотографию, но пока я работаю только с текстом. Опишите словами, с чем помочь или что на изображении!")
	case update.Message.Document != nil:
		h.SendMessage(chatID, "📄 Вижу документ, но пока я работаю только с текстом. Скопируйте текст из файла, и я его разберу!")
	case update.Message.Voice != nil:
		h.SendMessage(chatID, "🎤 Вижу голосовое сообщение, но пока я работаю только с текстом. Напишите ваш вопрос!")
	case update.Message.Sticker != nil:
		h.SendMessage(chatID, "😄 Отличный стикер! Но я понимаю только текст. О чем поговорим?")
	case update.Message.Text != "":
		h.handleTextMessage(context.Background(), update)
	}
}

func (h *Handler) handleCommand(update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	if h.cfg.AuthorizedUserID != 0 && userID != h.cfg.AuthorizedUserID {
		h.SendMessage(chatID, unauthorizedMessage)
		return
	}

	switch update.Message.Command() {
	case "start":
		h.sendMarkdown(chatID, h.welcomeMessage(update.Message.From.FirstName))
	case "help":
		h.sendMarkdown(chatID, helpMessage)
	case "clear":
		h.conversations.Clear(userID)
		h.SendMessage(chatID, "✅ История диалога очищена! Начинаем с чистого листа.")
	case "usage":
		h.sendMarkdown(chatID, h.usageMessage(userID))
	case "stats":
		h.sendMarkdown(chatID, h.statsMessage(userID))
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	text := update.Message.Text

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := h.bot.Request(typing); err != nil {
		logrus.Errorf("Ошибка при отправке индикатора набора: %v", err)
	}

	result := h.gate.Handle(ctx, userID, text)

	switch result.Status {
	case gate.StatusRejectedLength:
		h.SendMessage(chatID, fmt.Sprintf("❌ Сообщение слишком длинное! Пожалуйста, не более %d символов. В вашем сообщении: %d.", h.cfg.MaxMessageLength, len(text)))

	case gate.StatusRejectedUsage:
		h.SendMessage(chatID, h.denialMessage(result.Reason))

	case gate.StatusCompletionFailed:
		h.SendMessage(chatID, failureMessage(result.Failure))

	case gate.StatusDelivered:
		// Части ответа уходят строго по порядку с паузой между ними.
		for i, chunk := range result.Chunks {
			if i > 0 {
				time.Sleep(result.ChunkDelay)
			}
			if err := h.SendMessage(chatID, chunk); err != nil {
				logrus.Errorf("Ошибка при отправке части ответа: %v", err)
			}
		}
		if result.Warning != "" {
			h.sendMarkdown(chatID, result.Warning)
		}
	}
}
