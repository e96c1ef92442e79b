package cot

import (
	"strings"

	"github.com/bububa/regulation-agents/components/systemprompt"
)

const (
	identitySection = "IDENTITY and PURPOSE"
	stepsSection    = "INTERNAL ASSISTANT STEPS"
	outputSection   = "OUTPUT INSTRUCTIONS"
)

const (
	defaultBackground  = "- You are an assistant answering questions on aviation regulations."
	useContextInstruct = "- Always use the available additional information and context to enhance the response."
)

// Generator renders a reasoning prompt: identity, internal steps, output
// instructions, then the context providers
type Generator struct {
	systemprompt.BaseGenerator
	background      []string
	steps           []string
	outputInstructs []string
}

var _ systemprompt.Generator = (*Generator)(nil)

func New(options ...Option) *Generator {
	ret := new(Generator)
	for _, opt := range options {
		opt(ret)
	}
	if len(ret.background) == 0 {
		ret.background = []string{defaultBackground}
	}
	ret.outputInstructs = append(ret.outputInstructs, useContextInstruct)
	return ret
}

func (g *Generator) Generate() string {
	sections := []struct {
		title string
		lines []string
	}{
		{identitySection, g.background},
		{stepsSection, g.steps},
		{outputSection, g.outputInstructs},
	}
	var parts []string
	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		parts = append(parts, "# "+s.title)
		parts = append(parts, s.lines...)
		parts = append(parts, "")
	}
	parts = append(parts, g.ContextSection()...)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
