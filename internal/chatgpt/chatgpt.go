package chatgpt

import (
	"context"
	"errors"
	"time"

	"gptbot/internal/conversation"
	"gptbot/pkg/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const maxOutputTokens = 4000

type Service struct {
	client *openai.Client
}

func NewService(cfg *config.Config) *Service {
	client := openai.NewClient(cfg.OpenAIKey)
	return &Service{
		client: client,
	}
}

func systemPrompt() string {
	return "Ты полезный ИИ-ассистент, работающий в Telegram. Сегодня " + time.Now().Format("2006-01-02") + ". Отвечай кратко, но информативно. Используй эмодзи умеренно и только там, где они уместны."
}

// Complete отправляет накопленную историю плюс новое сообщение пользователя
// и возвращает ответ модели вместе с суммарным расходом токенов.
func (s *Service) Complete(ctx context.Context, history []conversation.Entry, message string) (string, int, error) {
	var messages []openai.ChatCompletionMessage

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(),
	})

	for _, item := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    item.Role,
			Content: item.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       openai.GPT4Dot1,
		Messages:    messages,
		MaxTokens:   maxOutputTokens,
		Temperature: 0.7,
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		logrus.Errorf("Ошибка при запросе к OpenAI: %v", err)
		return "", 0, err
	}

	if len(resp.Choices) == 0 {
		return "", 0, errors.New("нет ответа от OpenAI")
	}

	tokens := resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	return resp.Choices[0].Message.Content, tokens, nil
}
