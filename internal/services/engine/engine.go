package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/ai"
	"github.com/sirupsen/logrus"
)

// DefaultPersona is the fixed style preamble prepended to every prompt
const DefaultPersona = `You are an AI assistant with a friendly and engaging personality. Your responses should be:
- Warm and conversational, as if chatting with a good friend
- Informative and detailed, sharing relevant information from your knowledge base
- Natural-sounding, using contractions and casual language
- Engaging, asking follow-up questions or making relevant comments to keep the conversation flowing
- Structured with short paragraphs and occasional bullet points for clarity
- Empathetic, acknowledging the user's feelings or perspective when appropriate`

// Engine is the per-chatbot conversational state: the bound instruction plus
// the accumulated exchange history, held only in process memory.
type Engine struct {
	chatbotID   string
	instruction string
	persona     string
	maxTurns    int
	ai          ai.Service
	logger      *logrus.Logger

	mu      sync.Mutex
	history []models.Message
}

// Instruction returns the instruction the engine was bound to at creation
func (e *Engine) Instruction() string {
	return e.instruction
}

// History returns a snapshot of the accumulated exchange history
func (e *Engine) History() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Message, len(e.history))
	copy(out, e.history)
	return out
}

// Reply formats a prompt from the persona preamble, the bound instruction,
// the accumulated history and the new message, sends it to the model and
// persists the exchange into the engine's memory. The model call runs outside
// the history lock, so turns from concurrent requests for the same chatbot
// may interleave.
func (e *Engine) Reply(ctx context.Context, message string) (string, error) {
	prompt := e.buildPrompt(message)

	reply, err := e.ai.Generate(ctx, prompt)
	if err != nil {
		e.logger.WithError(err).WithField("chatbot_id", e.chatbotID).Error("Model call failed")
		return "", err
	}

	e.mu.Lock()
	e.history = append(e.history,
		models.Message{Role: models.RoleUser, Content: message},
		models.Message{Role: models.RoleAssistant, Content: reply},
	)
	// Cap memory at maxTurns exchanges, dropping the oldest
	if max := e.maxTurns * 2; max > 0 && len(e.history) > max {
		e.history = append([]models.Message(nil), e.history[len(e.history)-max:]...)
	}
	e.mu.Unlock()

	return reply, nil
}

func (e *Engine) buildPrompt(message string) string {
	e.mu.Lock()
	history := make([]models.Message, len(e.history))
	copy(history, e.history)
	e.mu.Unlock()

	var b strings.Builder
	b.WriteString(e.persona)
	b.WriteString("\n\nImportant context about the user or topic:\n")
	b.WriteString(e.instruction)
	b.WriteString("\n\nPrevious conversation:\n")
	for _, msg := range history {
		if msg.Role == models.RoleAssistant {
			b.WriteString("AI: ")
		} else {
			b.WriteString("Human: ")
		}
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nHuman: ")
	b.WriteString(message)
	b.WriteString("\nAI:")
	return b.String()
}
