// Package config loads service settings from the environment and an optional
// YAML file describing the generation targets and the judge.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/llm"
	"llm-eval-app/internal/storage"
)

// ModelSpec names a model and the provider serving it.
type ModelSpec struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Eval is the evaluation section, loadable from EVAL_CONFIG.
type Eval struct {
	Targets     []ModelSpec `yaml:"targets"`
	Judge       ModelSpec   `yaml:"judge"`
	Prompt      string      `yaml:"prompt"`
	Rubric      string      `yaml:"rubric"`
	Concurrency int         `yaml:"concurrency"`
}

type Config struct {
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string
	APIToken    string
	LogLevel    string
	Storage     storage.Config
	Credentials llm.Credentials
	Eval        Eval
}

// DefaultEval mirrors the original deployment: two Groq-hosted targets judged by Llama.
func DefaultEval() Eval {
	return Eval{
		Targets: []ModelSpec{
			{Provider: llm.ProviderGroq, Model: "llama-3.3-70b-versatile"},
			{Provider: llm.ProviderGroq, Model: "mixtral-8x7b-32768"},
		},
		Judge:  ModelSpec{Provider: llm.ProviderGroq, Model: "llama-3.3-70b-versatile"},
		Prompt: eval.DefaultPrompt,
		Rubric: eval.DefaultRubric,
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(os.Getenv, os.ReadFile)
}

func load(getenv func(string) string, readFile func(string) ([]byte, error)) (Config, error) {
	cfg := Config{
		ListenAddr:  envOr(getenv, "LISTEN_ADDR", ":8000"),
		DatabaseURL: getenv("DATABASE_URL"),
		RedisAddr:   envOr(getenv, "REDIS_ADDR", "localhost:6379"),
		APIToken:    getenv("API_TOKEN"),
		LogLevel:    envOr(getenv, "LOG_LEVEL", "info"),
		Storage: storage.Config{
			Endpoint:  getenv("MINIO_ENDPOINT"),
			Bucket:    getenv("MINIO_BUCKET"),
			AccessKey: getenv("MINIO_ACCESS_KEY"),
			SecretKey: getenv("MINIO_SECRET_KEY"),
		},
		Credentials: llm.Credentials{
			GroqAPIKey:      getenv("GROQ_API_KEY"),
			OpenAIAPIKey:    getenv("OPENAI_API_KEY"),
			GoogleAPIKey:    getenv("GOOGLE_API_KEY"),
			AnthropicAPIKey: getenv("ANTHROPIC_API_KEY"),
			OpenAIBaseURL:   getenv("OPENAI_BASE_URL"),
		},
		Eval: DefaultEval(),
	}

	if path := getenv("EVAL_CONFIG"); path != "" {
		b, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		var file Eval
		if err := yaml.Unmarshal(b, &file); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Eval.merge(file)
	}

	if v := getenv("EVAL_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("EVAL_CONCURRENCY: %w", err)
		}
		cfg.Eval.Concurrency = n
	}
	return cfg, nil
}

func (e *Eval) merge(o Eval) {
	if len(o.Targets) > 0 {
		e.Targets = o.Targets
	}
	if o.Judge.Model != "" {
		e.Judge = o.Judge
	}
	if o.Prompt != "" {
		e.Prompt = o.Prompt
	}
	if o.Rubric != "" {
		e.Rubric = o.Rubric
	}
	if o.Concurrency != 0 {
		e.Concurrency = o.Concurrency
	}
}

func envOr(getenv func(string) string, k, def string) string {
	if v := getenv(k); v != "" {
		return v
	}
	return def
}

// Factory builds a Completer for a provider.
type Factory func(ctx context.Context, provider string) (llm.Completer, error)

// Orchestrator wires the configured models into an eval.Orchestrator.
func (c Config) Orchestrator(ctx context.Context, logger *zap.Logger) (*eval.Orchestrator, error) {
	return c.Eval.Build(ctx, func(ctx context.Context, provider string) (llm.Completer, error) {
		return llm.New(ctx, provider, c.Credentials)
	}, logger)
}

// Build resolves every ModelSpec through newClient, sharing one client per provider.
func (e Eval) Build(ctx context.Context, newClient Factory, logger *zap.Logger) (*eval.Orchestrator, error) {
	clients := map[string]llm.Completer{}
	client := func(provider string) (llm.Completer, error) {
		if provider == "" {
			provider = llm.ProviderGroq
		}
		if c, ok := clients[provider]; ok {
			return c, nil
		}
		c, err := newClient(ctx, provider)
		if err != nil {
			return nil, err
		}
		clients[provider] = c
		return c, nil
	}

	cfg := eval.Config{Prompt: e.Prompt, Concurrency: e.Concurrency}
	for _, t := range e.Targets {
		c, err := client(t.Provider)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Model, err)
		}
		cfg.Targets = append(cfg.Targets, eval.Target{Name: t.Name, Model: t.Model, Client: c})
	}
	jc, err := client(e.Judge.Provider)
	if err != nil {
		return nil, fmt.Errorf("judge %s: %w", e.Judge.Model, err)
	}
	cfg.Judge = eval.Judge{Model: e.Judge.Model, Client: jc, Instruction: e.Rubric}
	return eval.New(cfg, logger)
}
