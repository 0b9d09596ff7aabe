package feedbacks

import (
	"github.com/on-the-ground/effect_ive_feedbacks/config"
	"github.com/on-the-ground/effect_ive_feedbacks/effects"
	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
	"go.uber.org/zap"
)

type Option func(*Engine)

// WithConfig replaces the default configuration. Without WithLogger the
// logger is built from cfg.Log.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEffectHandler registers a custom effect handler. Effect actions are
// routed to the first handler whose pattern matches, in registration order.
func WithEffectHandler(pattern any, handler func(action model.Action) any) Option {
	return func(e *Engine) {
		e.handlers = append(e.handlers, customHandler{pattern: pattern, handle: handler})
	}
}

// WithCapability adds or overrides a capability reachable through effects.Call.
func WithCapability(name string, fn effects.Capability) Option {
	return func(e *Engine) { e.extra[name] = fn }
}

// WithUnhandled receives failures of asynchronous effects: rejected promises,
// panicking generators, and dispatch errors raised in late continuations.
func WithUnhandled(fn func(error)) Option {
	return func(e *Engine) { e.unhandled = fn }
}
