package chat

import (
	"context"

	"github.com/bububa/instructor-go/pkg/instructor"
	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/bububa/regulation-agents/components"
)

// chatAnthropic moves system messages into the system field, anthropic rejects them in the list
func chatAnthropic(ctx context.Context, clt *instructor.InstructorAnthropic, req *Request, out any, resp *components.LLMResponse) error {
	temperature := req.Temperature
	chatReq := anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		System:      req.System,
		Temperature: &temperature,
		MaxTokens:   maxTokens(req.MaxTokens),
		Messages:    make([]anthropic.Message, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		if msg.Role() == components.SystemRole {
			if chatReq.System != "" {
				chatReq.System += "\n\n"
			}
			chatReq.System += msg.StringifiedContent()
			continue
		}
		v := new(anthropic.Message)
		msg.ToAnthropic(v)
		chatReq.Messages = append(chatReq.Messages, *v)
	}
	res, err := clt.CreateMessages(ctx, chatReq, out)
	if err != nil {
		return err
	}
	resp.FromAnthropic(&res)
	return nil
}
