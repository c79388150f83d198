package engine

import (
	"fmt"
	"log"

	"github.com/mesutfelat/cowork/internal/prompts"
	"github.com/mesutfelat/cowork/internal/task"
)

// ExecutorBuilder constructs an Executor with a fluent API.
type ExecutorBuilder struct {
	cfg            Config
	task           *task.Task
	provider       Provider
	tools          ToolRunner
	host           TaskHost
	hooks          Hooks
	systemPrompt   string
	planningPrompt string
	workspaceDesc  string
	customRules    string
	trackedFiles   func() []string
}

// NewExecutorBuilder creates a builder with default configuration.
func NewExecutorBuilder() *ExecutorBuilder {
	return &ExecutorBuilder{cfg: DefaultConfig()}
}

// WithTask sets the task record this run drives.
func (b *ExecutorBuilder) WithTask(t *task.Task) *ExecutorBuilder {
	b.task = t
	return b
}

// WithProvider sets the LLM provider.
func (b *ExecutorBuilder) WithProvider(p Provider) *ExecutorBuilder {
	b.provider = p
	return b
}

// WithTools sets the tool surface.
func (b *ExecutorBuilder) WithTools(t ToolRunner) *ExecutorBuilder {
	b.tools = t
	return b
}

// WithHost sets the daemon-side reporting surface.
func (b *ExecutorBuilder) WithHost(h TaskHost) *ExecutorBuilder {
	b.host = h
	return b
}

// WithModel pins the model for the whole run.
func (b *ExecutorBuilder) WithModel(model string) *ExecutorBuilder {
	b.cfg.Model = model
	return b
}

// WithLimits sets the budget ceilings.
func (b *ExecutorBuilder) WithLimits(l Limits) *ExecutorBuilder {
	b.cfg.Limits = l
	return b
}

// WithConfig replaces the whole executor configuration.
func (b *ExecutorBuilder) WithConfig(cfg Config) *ExecutorBuilder {
	b.cfg = cfg
	return b
}

// WithHooks sets custom hooks, replacing the default logger.
func (b *ExecutorBuilder) WithHooks(hooks Hooks) *ExecutorBuilder {
	b.hooks = hooks
	return b
}

// WithSystemPrompt overrides the composed execution prompt.
func (b *ExecutorBuilder) WithSystemPrompt(prompt string) *ExecutorBuilder {
	b.systemPrompt = prompt
	return b
}

// WithPlanningPrompt overrides the composed planning prompt.
func (b *ExecutorBuilder) WithPlanningPrompt(prompt string) *ExecutorBuilder {
	b.planningPrompt = prompt
	return b
}

// WithWorkspaceDescription injects the workspace context fragment into the
// composed prompts.
func (b *ExecutorBuilder) WithWorkspaceDescription(desc string) *ExecutorBuilder {
	b.workspaceDesc = desc
	return b
}

// WithCustomRules appends workspace rules from .cowork/rules to the
// execution prompt.
func (b *ExecutorBuilder) WithCustomRules(rules string) *ExecutorBuilder {
	b.customRules = rules
	return b
}

// WithFileTracker wires the workspace tracker feed used for artifact
// evidence at completion time.
func (b *ExecutorBuilder) WithFileTracker(fn func() []string) *ExecutorBuilder {
	b.trackedFiles = fn
	return b
}

// Build validates the wiring and constructs the Executor.
func (b *ExecutorBuilder) Build() (*Executor, error) {
	if b.task == nil {
		return nil, fmt.Errorf("task not configured: use WithTask")
	}
	if b.provider == nil {
		return nil, fmt.Errorf("provider not configured: use WithProvider")
	}
	if b.tools == nil {
		return nil, fmt.Errorf("tools not configured: use WithTools")
	}
	if b.host == nil {
		return nil, fmt.Errorf("host not configured: use WithHost")
	}

	cfg := b.cfg.withDefaults()

	// Per-task overrides win over daemon-level configuration.
	if b.task.AgentConfig.Model != "" {
		cfg.Model = b.task.AgentConfig.Model
	} else if b.task.Model != "" {
		cfg.Model = b.task.Model
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model not configured: use WithModel")
	}
	if b.task.AgentConfig.MaxTokens > 0 {
		cfg.Limits.MaxTotalTokens = b.task.AgentConfig.MaxTokens
	}

	systemPrompt := b.systemPrompt
	if systemPrompt == "" {
		composed, err := b.composePrompt(prompts.PromptExecution)
		if err != nil {
			return nil, err
		}
		systemPrompt = composed
	}
	if b.customRules != "" {
		systemPrompt += fmt.Sprintf(
			"\n\n[WORKSPACE RULES]\nThe following rules come from this workspace's .cowork/rules file. Follow them strictly:\n\n%s\n[/WORKSPACE RULES]",
			b.customRules)
		log.Printf("📜 Injected custom rules (%d bytes)", len(b.customRules))
	}

	planningPrompt := b.planningPrompt
	if planningPrompt == "" {
		composed, err := b.composePrompt(prompts.PromptPlanning)
		if err != nil {
			return nil, err
		}
		planningPrompt = composed
	}

	hooks := b.hooks
	if hooks == nil {
		hooks = Hooks{LoggerHook{L: log.Default()}}
	}

	return &Executor{
		task:           b.task,
		provider:       b.provider,
		tools:          b.tools,
		host:           b.host,
		hooks:          hooks,
		cfg:            cfg,
		systemPrompt:   systemPrompt,
		planningPrompt: planningPrompt,
		breaker:        NewToolBreaker(),
		compactor:      DefaultCompactor(),
		pause:          NewPauseGate(),
		trackedFiles:   b.trackedFiles,
	}, nil
}

// composePrompt renders a registry prompt with the variables this run knows.
func (b *ExecutorBuilder) composePrompt(id string) (string, error) {
	builder, err := prompts.NewPromptBuilder(prompts.DefaultRegistry(), id)
	if err != nil {
		return "", fmt.Errorf("failed to create prompt builder for %s: %w", id, err)
	}
	builder.WithVariable("tool_descriptions", b.tools.Descriptions())
	builder.WithVariable("workspace_context", b.workspaceDesc)
	prompt, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build %s prompt: %w", id, err)
	}
	return prompt, nil
}
