package telegram

import (
	"fmt"

	"gptbot/internal/gate"
	"gptbot/internal/usage"
)

const unauthorizedMessage = "❌ Это приватный бот, он доступен только авторизованным пользователям."

const helpMessage = `*Как пользоваться ботом:*

*Основное:*
Просто напишите вопрос или запрос, и я отвечу с помощью языковой модели.

*Что я умею:*
• Отвечать на вопросы на любые темы
• Помогать с текстами и редактурой
• Помогать с кодом
• Придумывать идеи и тексты
• Объяснять и анализировать
• Решать задачи

*Команды:*
/start - Приветственное сообщение
/clear - Очистить историю диалога
/usage - Текущий расход лимитов
/help - Эта справка
/stats - Статистика диалога

*Советы:*
• Формулируйте запрос конкретнее — ответ будет точнее
• Я помню контекст нашего диалога
• Используйте /clear, чтобы начать заново
• Длинные ответы разбиваются на несколько сообщений автоматически`

func (h *Handler) welcomeMessage(firstName string) string {
	return fmt.Sprintf(`🤖 *ИИ-ассистент*

Привет, %s! Я отвечаю на сообщения с помощью языковой модели.

Чем могу помочь:
• Ответы на вопросы
• Тексты и редактура
• Анализ и разборы
• Творческие задачи
• Помощь с кодом
• И многое другое!

Просто отправьте сообщение, и я отвечу.

*Команды:*
/start - Показать это приветствие
/clear - Очистить историю диалога
/usage - Текущий расход лимитов
/help - Справка
/stats - Статистика диалога

*Ваши лимиты:*
• В день: %d сообщений, %d токенов
• В час: %d сообщений
• Не чаще %d сообщений в минуту`,
		firstName,
		h.cfg.DailyMessageLimit, h.cfg.DailyTokenLimit,
		h.cfg.HourlyMessageLimit, h.cfg.RateLimitPerMinute)
}

func (h *Handler) usageMessage(userID int64) string {
	rec := h.ledger.Snapshot(userID)

	dailyPercent := 0
	if h.cfg.DailyMessageLimit > 0 {
		dailyPercent = rec.Daily.Messages * 100 / h.cfg.DailyMessageLimit
	}
	tokenPercent := 0
	if h.cfg.DailyTokenLimit > 0 {
		tokenPercent = rec.Daily.Tokens * 100 / h.cfg.DailyTokenLimit
	}

	statusEmoji := "✅"
	if dailyPercent > 80 || tokenPercent > 80 {
		statusEmoji = "⚠️"
	}
	if dailyPercent >= 100 || tokenPercent >= 100 {
		statusEmoji = "❌"
	}

	msg := fmt.Sprintf(`%s *Ваш текущий расход:*

*Сегодня (%s):*
• Сообщения: %d/%d (%d%%)
• Токены: %d/%d (%d%%)

*В этом часу:*
• Сообщения: %d/%d

*Лимиты:*
• Не чаще %d сообщений в минуту
• Дневной лимит обнуляется в полночь
• Часовой лимит обнуляется каждый час`,
		statusEmoji,
		rec.Daily.Date,
		rec.Daily.Messages, h.cfg.DailyMessageLimit, dailyPercent,
		rec.Daily.Tokens, h.cfg.DailyTokenLimit, tokenPercent,
		rec.Hourly.Messages, h.cfg.HourlyMessageLimit,
		h.cfg.RateLimitPerMinute)

	if rec.Daily.Messages >= h.cfg.DailyMessageLimit {
		msg += "\n\n⚠️ Дневной лимит сообщений исчерпан!"
	}
	if rec.Daily.Tokens >= h.cfg.DailyTokenLimit {
		msg += "\n\n⚠️ Дневной лимит токенов исчерпан!"
	}
	if rec.Hourly.Messages >= h.cfg.HourlyMessageLimit {
		msg += "\n\n⚠️ Часовой лимит исчерпан!"
	}

	return msg
}

func (h *Handler) statsMessage(userID int64) string {
	rec := h.ledger.Snapshot(userID)
	exchanges := h.conversations.Exchanges(userID)

	return fmt.Sprintf(`📊 *Статистика вашего диалога:*

*Текущая сессия:*
• Обменов в истории: %d
• Лимит памяти: %d обменов

*Расход:*
• Сообщений сегодня: %d
• Токенов сегодня: %d
• В текущем часу: %d сообщений

*Советы:*
• /clear сбрасывает историю диалога
• Длинные диалоги расходуют больше токенов
• История помогает держать контекст`,
		exchanges, h.cfg.MaxHistory,
		rec.Daily.Messages, rec.Daily.Tokens, rec.Hourly.Messages)
}

func (h *Handler) denialMessage(reason usage.Reason) string {
	switch reason {
	case usage.ReasonUnauthorized:
		return unauthorizedMessage
	case usage.ReasonRateLimit:
		return "⏱️ Вы отправляете сообщения слишком часто! Подождите минуту перед следующим сообщением."
	case usage.ReasonHourlyLimit:
		return fmt.Sprintf("⏰ Вы достигли часового лимита в %d сообщений. Попробуйте в следующем часу.", h.cfg.HourlyMessageLimit)
	case usage.ReasonDailyMessageLimit:
		return fmt.Sprintf("📅 Вы достигли дневного лимита в %d сообщений. Лимит обнуляется в полночь.", h.cfg.DailyMessageLimit)
	case usage.ReasonDailyTokenLimit:
		return fmt.Sprintf("🎯 Вы достигли дневного лимита токенов (%d). Лимит обнуляется в полночь.", h.cfg.DailyTokenLimit)
	}
	return "❌ Лимит использования исчерпан. Попробуйте позже."
}

func failureMessage(kind gate.FailureKind) string {
	msg := "❌ Извините, при обработке запроса произошла ошибка."

	switch kind {
	case gate.FailureUpstreamAuth:
		msg += "\n\n🔑 Проблема с API-ключом — проверьте конфигурацию бота."
	case gate.FailureUpstreamRateLimited:
		msg += "\n\n⏱️ Превышен лимит запросов к API — попробуйте через минуту."
	case gate.FailureUpstreamServer:
		msg += "\n\n🔧 Сервис модели сейчас испытывает проблемы — попробуйте позже."
	case gate.FailureUpstreamTimeout:
		msg += "\n\n⏱️ Истекло время ожидания ответа — попробуйте сообщение покороче."
	}

	return msg
}
