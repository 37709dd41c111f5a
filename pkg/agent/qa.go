package agent

import (
	"context"
	"fmt"
	"strings"

	"literature-agent-be/internal/constant"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/llm"
	"literature-agent-be/pkg/stream"
)

// QAAgent answers questions about the loaded document, or chats when none is loaded
type QAAgent struct {
	deps Deps
}

func NewQAAgent(deps Deps) *QAAgent {
	return &QAAgent{deps: deps}
}

func (a *QAAgent) Kind() router.Intent { return router.IntentQA }

func (a *QAAgent) Run(ctx context.Context, sess *Session, payload Payload, em *stream.Emitter) (*Result, error) {
	messages := a.buildMessages(sess, payload.Query)

	ch, err := a.deps.LLM.ChatStream(ctx, messages, llm.WithTemperature(constant.QATemperature))
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	if _, err := relay(ctx, ch, em); err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	return &Result{}, nil
}

func (a *QAAgent) buildMessages(sess *Session, question string) []llm.Message {
	var history []llm.Message
	if sess != nil {
		history = recentHistory(sess.History, a.deps.Config.MaxHistory)
	}

	if !sess.HasDocument() {
		messages := make([]llm.Message, 0, len(history)+2)
		messages = append(messages, llm.Message{Role: constant.ChatMessageRoleSystem, Content: constant.ChitChatSystemPrompt})
		messages = append(messages, history...)
		return append(messages, llm.Message{Role: constant.ChatMessageRoleUser, Content: question})
	}

	excerpts := relevantPages(sess.Document, question, constant.QAMaxExcerpts, constant.QAExcerptChars)
	var sb strings.Builder
	for _, ex := range excerpts {
		fmt.Fprintf(&sb, "--- PAGE %d ---\n%s\n\n", ex.Page, ex.Text)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: constant.ChatMessageRoleSystem, Content: constant.DocumentQASystemPrompt})
	messages = append(messages, history...)
	return append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: fmt.Sprintf(constant.DocumentQAUserPrompt, sess.Document.Name, sb.String(), question),
	})
}
