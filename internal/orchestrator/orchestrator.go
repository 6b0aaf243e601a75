// Package orchestrator runs one bounded agentic turn: it prompts the
// language model, normalizes the reply into a typed intent, dispatches
// domain actions, and feeds results back into the next prompt until the
// model answers or the step bound exhausts.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/david8712403/lec-dashboard-sub000/internal/intent"
	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/model"
	"github.com/david8712403/lec-dashboard-sub000/internal/skill"
)

const (
	// maxSteps bounds the number of model calls per turn.
	maxSteps = 3

	// maxHistory bounds how many prior exchanges feed the prompt.
	maxHistory = 8

	statusThinking = "思考中…"

	// fallbackFinal closes the turn when the step bound exhausts
	// without a final intent. Degradation, not an error.
	fallbackFinal = "操作已完成，但需要更多資訊才能繼續。"

	// clarifyFinal closes the turn when the model asked for a tool
	// call without naming an action.
	clarifyFinal = "請再說明一次要執行的操作，我需要更多細節才能繼續。"
)

// Orchestrator drives turns. It is stateless across turns and safe for
// concurrent use.
type Orchestrator struct {
	model    model.Client
	registry *skill.Registry
	logger   log.Logger
}

// New creates an orchestrator over the given model client and action
// registry.
func New(client model.Client, registry *skill.Registry, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{model: client, registry: registry, logger: logger}
}

// Run executes one turn for the user message. It never returns an
// error: every exit path ends with exactly one terminal Message or
// Error on the sink, followed by a trailing elapsed-time Status.
func (o *Orchestrator) Run(ctx context.Context, message string, history []Exchange, sink Sink) {
	start := time.Now()
	defer func() {
		secs := int(time.Since(start).Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		sink.Status(fmt.Sprintf("完成，耗時 %d 秒", secs))
	}()

	sink.Status(statusThinking)

	catalog := o.registry.Catalog()
	history = trimHistory(history, maxHistory)

	var trace []traceEntry
	for step := 1; step <= maxSteps; step++ {
		prompt := buildPrompt(catalog, history, trace, message)

		raw, err := o.model.Complete(ctx, prompt)
		if err != nil {
			o.logger.Error("model call failed", "step", step, "error", err)
			sink.Error(err, true)
			return
		}

		in := intent.Normalize(raw)
		if in.Kind == intent.KindFinal {
			text := in.Reply
			if text == "" {
				text = raw
			}
			if err := sink.Message(text); err != nil {
				o.logger.Error("emitting final message failed", "error", err)
			}
			return
		}

		// Advisory reply on a tool call is a courtesy message; it
		// does not end the turn.
		if in.Reply != "" {
			if err := sink.Message(in.Reply); err != nil {
				o.logger.Error("emitting advisory message failed", "error", err)
				return
			}
		}

		if in.Action == "" {
			if err := sink.Message(clarifyFinal); err != nil {
				o.logger.Error("emitting clarification failed", "error", err)
			}
			return
		}

		tool := in.Tool
		if tool == "" {
			tool = in.Action
		}
		if err := sink.ToolCall(tool, in.Action, in.Args, step); err != nil {
			o.logger.Error("emitting tool call failed", "error", err)
			return
		}

		dispatchStart := time.Now()
		result, dispatchErr := o.registry.Dispatch(ctx, in.Action, in.Args)
		elapsed := time.Since(dispatchStart)

		// Domain failures are user-visible content, not transport
		// failures; fold them into the result.
		if dispatchErr != nil {
			result = map[string]any{"error": dispatchErr.Error()}
		}

		if err := sink.ToolResult(tool, in.Action, elapsed, result, step); err != nil {
			o.logger.Error("emitting tool result failed", "error", err)
			return
		}

		if errors.Is(dispatchErr, skill.ErrUnknownAction) {
			if err := sink.Message(dispatchErr.Error()); err != nil {
				o.logger.Error("emitting final message failed", "error", err)
			}
			return
		}

		trace = append(trace, traceEntry{Action: in.Action, Result: renderResult(result)})
	}

	if err := sink.Message(fallbackFinal); err != nil {
		o.logger.Error("emitting fallback message failed", "error", err)
	}
}

// renderResult flattens an action result for the tool trace.
func renderResult(result any) string {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(body)
}
