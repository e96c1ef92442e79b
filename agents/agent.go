package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/chat"
	"github.com/bububa/regulation-agents/components/systemprompt"
	"github.com/bububa/regulation-agents/components/systemprompt/cot"
	"github.com/bububa/regulation-agents/schema"
)

type IAgent interface {
	Name() string
}

// Config represents general agents configuration
type Config struct {
	// client Client for interacting with the language model
	client chat.Client
	//	memory  Memory component for storing chat history, nil keeps the agent stateless
	memory *components.Memory
	//	systemPromptGenerator Component for generating system prompts.
	systemPromptGenerator systemprompt.Generator
	// model llm model
	model string
	// temperature Temperature for response generation, typically ranging from 0 to 1.
	temperature float32
	// maxTokens Maximum number of tokens allowed in the response
	maxTokens int
	// name is Agent name presentation
	name string
}

// Agent class for chat agents.
// This class provides the core functionality for handling chat interactions, including managing memory,
// generating system prompts, and obtaining responses from a language model.
type Agent struct {
	Config
	startHook func(context.Context, *Agent, schema.Schema)
	endHook   func(context.Context, *Agent, schema.Schema, *components.LLMResponse)
	errorHook func(context.Context, *Agent, schema.Schema, error)
}

var _ IAgent = (*Agent)(nil)

// NewAgent initializes the Agent
func NewAgent(options ...Option) *Agent {
	ret := new(Agent)
	for _, opt := range options {
		opt(&ret.Config)
	}
	if ret.systemPromptGenerator == nil {
		ret.systemPromptGenerator = cot.New()
	}
	return ret
}

// ResetMemory resets the memory to its initial state
func (a *Agent) ResetMemory() {
	if a.memory != nil {
		a.memory.Reset()
	}
}

func (a *Agent) SetClient(clt chat.Client) {
	a.client = clt
}

func (a *Agent) Client() chat.Client {
	return a.client
}

func (a *Agent) SetMemory(m *components.Memory) {
	a.memory = m
}

func (a *Agent) SetSystemPromptGenerator(g systemprompt.Generator) {
	a.systemPromptGenerator = g
}

func (a *Agent) SetModel(model string) {
	a.model = model
}

func (a *Agent) SetTemperature(temperature float32) {
	a.temperature = temperature
}

func (a *Agent) SetMaxTokens(maxTokens int) {
	a.maxTokens = maxTokens
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) SetName(name string) {
	a.name = name
}

func (a *Agent) SetStartHook(fn func(context.Context, *Agent, schema.Schema)) {
	a.startHook = fn
}

func (a *Agent) SetEndHook(fn func(context.Context, *Agent, schema.Schema, *components.LLMResponse)) {
	a.endHook = fn
}

func (a *Agent) SetErrorHook(fn func(context.Context, *Agent, schema.Schema, error)) {
	a.errorHook = fn
}

// response obtains a structured response from the language model synchronously
func (a *Agent) response(ctx context.Context, messages []components.Message, output any, llmResp *components.LLMResponse) error {
	if a.client == nil {
		return errors.New("agent has no llm client")
	}
	req := &chat.Request{
		Model:       a.model,
		System:      a.systemPromptGenerator.Generate(),
		Messages:    messages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	return a.client.Chat(ctx, req, output, llmResp)
}

// Run runs the chat agent with the given user input synchronously and returns the text answer.
// history is sent between the agent memory and the user input.
func (a *Agent) Run(ctx context.Context, userInput schema.Schema, output *schema.String, llmResp *components.LLMResponse, history ...components.Message) error {
	reply := new(schema.Reply)
	if err := a.RunStructured(ctx, userInput, reply, llmResp, history...); err != nil {
		return err
	}
	*output = schema.String(reply.Answer)
	return nil
}

// RunStructured decodes the answer into output, a pointer to a json tagged struct.
// Answers failing decoding or validate tags are re-asked by the client.
func (a *Agent) RunStructured(ctx context.Context, userInput schema.Schema, output any, llmResp *components.LLMResponse, history ...components.Message) error {
	if llmResp == nil {
		llmResp = new(components.LLMResponse)
	}
	if fn := a.startHook; fn != nil {
		fn(ctx, a, userInput)
	}
	var memHistory []components.Message
	if a.memory != nil {
		memHistory = a.memory.History()
	}
	messages := make([]components.Message, 0, len(memHistory)+len(history)+1)
	messages = append(messages, memHistory...)
	messages = append(messages, history...)
	if userInput != nil {
		messages = append(messages, *components.NewMessage(components.UserRole, userInput))
	}
	if err := a.response(ctx, messages, output, llmResp); err != nil {
		if fn := a.errorHook; fn != nil {
			fn(ctx, a, userInput, err)
		}
		return fmt.Errorf("%s: %w", a.displayName(), err)
	}
	if a.memory != nil && userInput != nil {
		answer, ok := output.(schema.Schema)
		if !ok {
			answer = schema.String(llmResp.Content)
		}
		a.memory.NewTurn()
		a.memory.NewMessage(components.UserRole, userInput)
		a.memory.NewMessage(components.AssistantRole, answer)
	}
	if fn := a.endHook; fn != nil {
		fn(ctx, a, userInput, llmResp)
	}
	return nil
}

func (a *Agent) displayName() string {
	if a.name == "" {
		return "agent"
	}
	return a.name
}

// SystemPromptContextProvider returns agent systemPromptGenerator's context provider
func (a *Agent) SystemPromptContextProvider(title string) (systemprompt.ContextProvider, error) {
	return a.systemPromptGenerator.ContextProvider(title)
}

// RegisterSystemPromptContextProvider registers a new context provider
func (a *Agent) RegisterSystemPromptContextProvider(provider systemprompt.ContextProvider) {
	a.systemPromptGenerator.AddContextProviders(provider)
}

// UnregisterSystemPromptContextProvider Unregisters an existing context provider.
func (a *Agent) UnregisterSystemPromptContextProvider(title string) {
	a.systemPromptGenerator.RemoveContextProviders(title)
}

// SystemPrompt returns the system prompt
func (a *Agent) SystemPrompt() string {
	return a.systemPromptGenerator.Generate()
}

// HistoryMessages converts previous question/answer turns into chat messages
func HistoryMessages(turns []schema.Turn) []components.Message {
	ret := make([]components.Message, 0, len(turns)*2)
	for _, t := range turns {
		ret = append(ret, *components.NewMessage(components.UserRole, schema.String(t.Question)))
		ret = append(ret, *components.NewMessage(components.AssistantRole, schema.String(t.Answer)))
	}
	return ret
}
