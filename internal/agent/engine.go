package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	mcp "github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cognigate/cognigate/internal/bus"
	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/prompt"
	"github.com/cognigate/cognigate/internal/queue"
	"github.com/cognigate/cognigate/internal/router"
	"github.com/cognigate/cognigate/internal/tools"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
	"github.com/cognigate/cognigate/pkg/types"
)

// Engine is the reasoning worker pool. Workers compete for tasks on
// the queue; each session is owned end-to-end by a single worker, so
// events within a session stay strictly ordered.
type Engine struct {
	cfg      *config.Manager
	router   *router.Router
	bus      *bus.Bus
	queue    *queue.Queue
	patterns *prompt.PatternStore
	tools    *tools.Client
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New creates the engine. The tool client may be nil when no tool
// server is configured; sessions then reason without tools.
func New(cfg *config.Manager, rt *router.Router, eventBus *bus.Bus, taskQueue *queue.Queue, patterns *prompt.PatternStore, toolClient *tools.Client, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		router:   rt,
		bus:      eventBus,
		queue:    taskQueue,
		patterns: patterns,
		tools:    toolClient,
		tracer:   tracer,
		logger:   logger,
	}
}

// Run starts the worker pool and blocks until ctx is canceled. Workers
// finish their current session before exiting, so a shutdown never
// strands a client mid-stream.
func (e *Engine) Run(ctx context.Context) error {
	workers := e.cfg.Get().Agent.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return e.workerLoop(gctx, worker)
		})
	}
	return g.Wait()
}

func (e *Engine) workerLoop(ctx context.Context, worker int) error {
	for {
		taskCtx, task, err := e.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			e.logger.Error("dequeue failed, backing off", "worker", worker, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		// The session runs to completion even if the subscriber went
		// away; delivery cancellation must not cancel the work.
		sessionCtx := context.WithoutCancel(taskCtx)
		e.process(sessionCtx, task)
	}
}

// publish sends a session event, logging delivery failures. A dead bus
// must not kill the worker mid-session.
func (e *Engine) publish(ctx context.Context, sessionID, eventType string, payload any) {
	ev, err := bus.NewEvent(eventType, payload)
	if err != nil {
		e.logger.Error("event marshal failed", "session_id", sessionID, "type", eventType, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, sessionID, ev); err != nil {
		e.logger.Warn("event publish failed", "session_id", sessionID, "type", eventType, "error", err)
	}
}

func (e *Engine) publishError(ctx context.Context, sessionID string, kind gwerrors.Kind, message string) {
	e.publish(ctx, sessionID, bus.EventError, map[string]string{
		"kind":    string(kind),
		"message": message,
	})
}

// actionCall is the JSON shape inside an ACTION block.
type actionCall struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (e *Engine) process(ctx context.Context, task *queue.Task) {
	cfg := e.cfg.Get()

	ctx, span := e.tracer.Start(ctx, "agent.session",
		trace.WithAttributes(
			attribute.String("session.id", task.SessionID),
			attribute.String("model.alias", task.Alias),
		))
	defer span.End()

	e.publish(ctx, task.SessionID, bus.EventWorkerAck, nil)

	var descriptors []mcp.Tool
	if e.tools != nil {
		fetched, err := e.tools.FetchDescriptors(ctx)
		if err != nil {
			e.logger.Warn("tool descriptors unavailable, continuing without tools",
				"session_id", task.SessionID, "error", err)
		} else {
			descriptors = fetched
		}
	}

	patternName := task.ReasoningMode
	if patternName == "" {
		patternName = cfg.ReasoningModeFor(task.Alias)
	}
	patternPrompt, err := e.patterns.Render(patternName, descriptors)
	if err != nil {
		e.publishError(ctx, task.SessionID, gwerrors.KindOf(err), err.Error())
		return
	}

	serverPrompts, err := prompt.LoadServerPrompts(cfg.Server.PromptDir)
	if err != nil {
		e.logger.Warn("server prompts unavailable", "error", err)
	}

	systemPrompt := prompt.Build(prompt.Inputs{
		PatternPrompt:           patternPrompt,
		ClientSystemInstruction: task.ClientInstructions.SystemInstruction,
		ClientManifests:         task.ClientInstructions.Manifests,
		ServerSystemInstruction: serverPrompts.Instruction,
		ServerManifests:         serverPrompts.Manifests,
	})

	maxSteps := cfg.Agent.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 12
	}

	var pad Scratchpad
	for step := 1; step <= maxSteps; step++ {
		done, err := e.runStep(ctx, cfg, task, systemPrompt, &pad, step)
		if err != nil {
			kind := gwerrors.KindOf(err)
			if kind == "" {
				kind = gwerrors.KindLLMUnavailable
			}
			e.publishError(ctx, task.SessionID, kind, err.Error())
			return
		}
		if done {
			return
		}
	}

	limitErr := gwerrors.NewStepLimitExceeded(maxSteps)
	e.publishError(ctx, task.SessionID, limitErr.Kind, limitErr.Message)
}

// runStep executes one loop iteration. done=true means the session
// published its terminal event.
func (e *Engine) runStep(ctx context.Context, cfg *config.Config, task *queue.Task, systemPrompt string, pad *Scratchpad, step int) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "agent.step",
		trace.WithAttributes(attribute.Int("step.number", step)))
	defer span.End()

	stepTimeout := cfg.Agent.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 300 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	req := &types.ChatRequest{
		Model: task.Alias,
		Messages: []types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: pad.Render(task.UserQuery)},
		},
		Stream: true,
	}

	typewriter := cfg.Streaming.TypewriterMode != "client"

	parser := NewStreamParser(Callbacks{
		OnThoughtDelta: func(text string) {
			// Thought deltas go out per character so the client renders
			// the thinking as it happens.
			for _, r := range text {
				e.publish(ctx, task.SessionID, bus.EventAgentThoughtStream, map[string]string{"content": string(r)})
			}
		},
		OnThoughtEnd: func() {
			e.publish(ctx, task.SessionID, bus.EventAgentThoughtEnd, nil)
		},
		OnFinalDelta: func(text string) {
			if typewriter {
				for _, r := range text {
					e.publish(ctx, task.SessionID, bus.EventFinalAnswerStream, map[string]string{"content": string(r)})
				}
				return
			}
			e.publish(ctx, task.SessionID, bus.EventFinalAnswerStream, map[string]string{"content": text})
		},
	})

	handler, err := e.router.Stream(stepCtx, task.Alias, req)
	if err != nil {
		if gwerrors.Is(err, gwerrors.KindNoProviderAvailable) {
			return false, gwerrors.NewLLMUnavailable(task.Alias)
		}
		return false, err
	}
	defer handler.Close()

	for {
		chunk, err := handler.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, gwerrors.NewLLMUnavailable(task.Alias)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				parser.Feed(choice.Delta.Content)
			}
		}
	}

	result := parser.Finish()

	switch {
	case result.HasFinal:
		e.publish(ctx, task.SessionID, bus.EventFinalAnswerStreamEnd, nil)
		return true, nil

	case result.HasAction && result.Action != "":
		var call actionCall
		if err := json.Unmarshal([]byte(result.Action), &call); err != nil || call.ToolName == "" {
			return false, gwerrors.NewParseFailure("action block is not a valid tool call: " + result.Action)
		}

		e.publish(ctx, task.SessionID, bus.EventAgentToolCallStart, map[string]any{
			"tool":      call.ToolName,
			"arguments": call.Arguments,
		})

		observation := e.invokeTool(ctx, cfg, call)
		e.publish(ctx, task.SessionID, bus.EventAgentObservation, map[string]string{
			"observation": observation,
		})

		pad.Append(Step{
			Thought:     result.Thought,
			Action:      result.Action,
			Observation: observation,
		})
		e.publish(ctx, task.SessionID, bus.EventAgentToolCallEnd, map[string]string{"tool": call.ToolName})
		return false, nil

	case result.HasAction:
		// Empty action block: a reflective pause. The thought enters the
		// scratchpad and the loop continues.
		pad.Append(Step{Thought: result.Thought})
		return false, nil

	default:
		return false, gwerrors.NewParseFailure("model output contained neither an action nor a final answer")
	}
}

// invokeTool runs the tool call and always produces an observation
// string; failures become structured error observations so the loop
// continues with the failure as context.
func (e *Engine) invokeTool(ctx context.Context, cfg *config.Config, call actionCall) string {
	if e.tools == nil {
		obs := tools.Observation{Error: 503, Detail: "no tool server configured"}
		return obs.String()
	}

	toolTimeout := cfg.Agent.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = 300 * time.Second
	}
	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	obs, err := e.tools.Invoke(toolCtx, call.ToolName, call.Arguments)
	if err != nil {
		failed := tools.Observation{Error: 502, Detail: err.Error()}
		return failed.String()
	}
	return obs.String()
}
