package chat

import (
	"context"

	"github.com/bububa/instructor-go/pkg/instructor"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/regulation-agents/components"
)

func chatOpenAI(ctx context.Context, clt *instructor.InstructorOpenAI, req *Request, out any, resp *components.LLMResponse) error {
	chatReq := openai.ChatCompletionRequest{
		Model:               req.Model,
		Temperature:         req.Temperature,
		MaxCompletionTokens: maxTokens(req.MaxTokens),
		Messages:            make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1),
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		v := new(openai.ChatCompletionMessage)
		msg.ToOpenAI(v)
		chatReq.Messages = append(chatReq.Messages, *v)
	}
	res, err := clt.CreateChatCompletion(ctx, chatReq, out)
	if err != nil {
		return err
	}
	resp.FromOpenAI(&res)
	return nil
}
