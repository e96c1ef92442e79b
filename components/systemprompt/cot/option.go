package cot

import (
	"strings"

	"github.com/bububa/regulation-agents/components/systemprompt"
)

type Option = func(g *Generator)

// WithBackground replaces the identity lines
func WithBackground(background []string) Option {
	return func(g *Generator) {
		g.background = background
	}
}

// WithSteps replaces the reasoning steps
func WithSteps(steps []string) Option {
	return func(g *Generator) {
		g.steps = steps
	}
}

// WithOutputInstructs replaces the output instructions
func WithOutputInstructs(outputInstructs []string) Option {
	return func(g *Generator) {
		g.outputInstructs = outputInstructs
	}
}

// AddSteps appends reasoning steps, blank lines are ignored
func AddSteps(steps ...string) Option {
	return func(g *Generator) {
		g.steps = appendLines(g.steps, steps)
	}
}

// AddOutputInstructs appends output instructions, blank lines are ignored
func AddOutputInstructs(instructs ...string) Option {
	return func(g *Generator) {
		g.outputInstructs = appendLines(g.outputInstructs, instructs)
	}
}

func WithContextProviders(providers ...systemprompt.ContextProvider) Option {
	return func(g *Generator) {
		g.AddContextProviders(providers...)
	}
}

// appendLines keeps the "- " list marker the prompt sections use
func appendLines(list []string, lines []string) []string {
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !strings.HasPrefix(l, "- ") {
			l = "- " + l
		}
		list = append(list, l)
	}
	return list
}
