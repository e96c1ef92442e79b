package tools

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type Option func(c *Config)

func WithTitle(title string) Option {
	return func(c *Config) {
		c.SetTitle(title)
	}
}

func WithDescription(desc string) Option {
	return func(c *Config) {
		c.SetDescription(desc)
	}
}

func WithStartHook(fn func(context.Context, ITool, any)) Option {
	return func(c *Config) {
		c.SetStartHook(fn)
	}
}

func WithEndHook(fn func(context.Context, ITool, any, any)) Option {
	return func(c *Config) {
		c.SetEndHook(fn)
	}
}

func WithErrorHook(fn func(context.Context, ITool, any, error)) Option {
	return func(c *Config) {
		c.SetErrorHook(fn)
	}
}

// WithLogger installs hooks logging every tool call, failures at warn level
func WithLogger(entry *log.Entry) Option {
	return func(c *Config) {
		if entry == nil {
			return
		}
		c.SetStartHook(func(_ context.Context, t ITool, _ any) {
			entry.WithField("tool", t.Title()).Debug("tool call started")
		})
		c.SetEndHook(func(_ context.Context, t ITool, _ any, _ any) {
			entry.WithField("tool", t.Title()).Debug("tool call finished")
		})
		c.SetErrorHook(func(_ context.Context, t ITool, _ any, err error) {
			entry.WithField("tool", t.Title()).WithError(err).Warn("tool call failed")
		})
	}
}
