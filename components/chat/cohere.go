package chat

import (
	"context"
	"errors"

	"github.com/bububa/instructor-go/pkg/instructor"
	cohere "github.com/cohere-ai/cohere-go/v2"

	"github.com/bububa/regulation-agents/components"
)

// chatCohere sends the last user message as the cohere message and everything before it as history
func chatCohere(ctx context.Context, clt *instructor.InstructorCohere, req *Request, out any, resp *components.LLMResponse) error {
	lastIdx := -1
	for idx := len(req.Messages) - 1; idx >= 0; idx-- {
		if req.Messages[idx].Role() == components.UserRole {
			lastIdx = idx
			break
		}
	}
	if lastIdx < 0 {
		return errors.New("cohere chat requires a user message")
	}
	temperature := float64(req.Temperature)
	tokens := maxTokens(req.MaxTokens)
	chatReq := cohere.ChatRequest{
		Temperature: &temperature,
		MaxTokens:   &tokens,
		Message:     req.Messages[lastIdx].StringifiedContent(),
	}
	if req.Model != "" {
		chatReq.Model = &req.Model
	}
	if req.System != "" {
		chatReq.Preamble = &req.System
	}
	for idx, msg := range req.Messages {
		if idx == lastIdx {
			continue
		}
		v := new(cohere.Message)
		msg.ToCohere(v)
		chatReq.ChatHistory = append(chatReq.ChatHistory, v)
	}
	res, err := clt.Chat(ctx, &chatReq, out)
	if err != nil {
		return err
	}
	resp.FromCohere(res)
	return nil
}
