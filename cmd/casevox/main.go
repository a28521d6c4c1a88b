// Command casevox processes a recorded call-center conversation into
// summarised, classified cases.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/casevox/casevox/internal/classify"
	"github.com/casevox/casevox/internal/config"
	"github.com/casevox/casevox/internal/export"
	"github.com/casevox/casevox/internal/observe"
	"github.com/casevox/casevox/internal/pipeline"
	"github.com/casevox/casevox/internal/resilience"
	"github.com/casevox/casevox/internal/segment"
	"github.com/casevox/casevox/internal/summary"
	"github.com/casevox/casevox/pkg/provider/embeddings"
	ollamaembed "github.com/casevox/casevox/pkg/provider/embeddings/ollama"
	oaembed "github.com/casevox/casevox/pkg/provider/embeddings/openai"
	"github.com/casevox/casevox/pkg/provider/llm"
	"github.com/casevox/casevox/pkg/provider/llm/anyllm"
	oallm "github.com/casevox/casevox/pkg/provider/llm/openai"
	"github.com/casevox/casevox/pkg/provider/stt"
	"github.com/casevox/casevox/pkg/provider/stt/whisper"
	"github.com/casevox/casevox/pkg/store/postgres"
)

// defaultEmbeddingDimensions is used for the archive schema when the config
// does not pin a dimension (matches OpenAI text-embedding-3-small).
const defaultEmbeddingDimensions = 1536

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "path to a 16-bit PCM WAV recording to transcribe and process")
	transcriptPath := flag.String("transcript", "", "path to an existing transcript text file to process")
	outDir := flag.String("out", "", "override the export directory from the config")
	flag.Parse()

	if (*audioPath == "") == (*transcriptPath == "") {
		fmt.Fprintln(os.Stderr, "casevox: exactly one of -audio or -transcript is required")
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "casevox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "casevox: %v\n", err)
		}
		return 1
	}
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("casevox starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
		"export_dir", cfg.Export.Dir,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	// The in-process whisper backend holds a loaded ggml model.
	if closer, ok := providers.STT.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if providers.Embeddings == nil {
		slog.Error("providers.embeddings must be configured; segmentation needs an embeddings backend")
		return 1
	}
	if providers.LLM == nil {
		slog.Error("providers.llm must be configured; summarisation needs an LLM backend")
		return 1
	}

	// ── Pipeline assembly ─────────────────────────────────────────────────────
	segmenter, err := segment.New(providers.Embeddings, cfg.Segmentation)
	if err != nil {
		slog.Error("invalid segmentation parameters", "err", err)
		return 1
	}

	var summaryOpts []summary.Option
	if cfg.Summary.MaxTokens > 0 {
		summaryOpts = append(summaryOpts, summary.WithMaxTokens(cfg.Summary.MaxTokens))
	}
	summaryOpts = append(summaryOpts, summary.WithMetrics(metrics))
	summariser := summary.NewLLMSummariser(providers.LLM, summaryOpts...)

	pipelineOpts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if providers.STT != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithTranscriber(providers.STT))
	}
	if cfg.Classification.Enabled {
		var classifyOpts []classify.Option
		if cfg.Classification.FuzzyThreshold > 0 {
			classifyOpts = append(classifyOpts, classify.WithFuzzyThreshold(cfg.Classification.FuzzyThreshold))
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithClassifier(classify.New(classifyOpts...)))
	}

	if cfg.Archive.PostgresDSN != "" {
		dims := cfg.Archive.EmbeddingDimensions
		if dims <= 0 {
			dims = providers.Embeddings.Dimensions()
		}
		if dims <= 0 {
			dims = defaultEmbeddingDimensions
		}
		archive, err := postgres.NewStore(ctx, cfg.Archive.PostgresDSN, dims)
		if err != nil {
			slog.Error("failed to open case archive", "err", err)
			return 1
		}
		defer archive.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithArchive(archive, providers.Embeddings))
		slog.Info("case archive connected", "embedding_dimensions", dims)
	}

	pipe, err := pipeline.New(segmenter, summariser, pipelineOpts...)
	if err != nil {
		slog.Error("failed to assemble pipeline", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	result, err := runInput(ctx, pipe, *audioPath, *transcriptPath)
	if err != nil {
		slog.Error("pipeline run failed", "err", err)
		return 1
	}
	slog.Info("run complete", "run_id", result.RunID, "cases", len(result.Cases))

	written, err := export.Write(result, cfg.Export)
	if err != nil {
		slog.Error("export failed", "err", err)
		return 1
	}
	for _, path := range written {
		slog.Info("wrote output file", "path", path)
	}

	printRunSummary(result)
	return 0
}

// runInput dispatches to audio or transcript processing.
func runInput(ctx context.Context, pipe *pipeline.Pipeline, audioPath, transcriptPath string) (*pipeline.Result, error) {
	if audioPath != "" {
		f, err := os.Open(audioPath)
		if err != nil {
			return nil, fmt.Errorf("open audio file: %w", err)
		}
		defer f.Close()
		audio, err := stt.DecodeWAV(f)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", audioPath, err)
		}
		slog.Info("audio loaded",
			"path", audioPath,
			"duration", audio.Duration(),
			"sample_rate", audio.SampleRate,
		)
		return pipe.RunAudio(ctx, audio)
	}

	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript file: %w", err)
	}
	return pipe.RunTranscript(ctx, string(data))
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai goes through the native SDK client; the other hosted providers
	// share the any-llm pattern of optional APIKey + optional BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	// whisper runs the ggml model in-process; Model is the model file path.
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.Model, opts...)
	})

	// whisper-server talks to a whisper.cpp server over HTTP at BaseURL.
	reg.RegisterSTT("whisper-server", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.ServerOption
		if entry.Model != "" {
			opts = append(opts, whisper.WithServerModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithServerLanguage(lang))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// providerSet holds the instantiated providers for one run.
type providerSet struct {
	STT        stt.Transcriber
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// buildProviders instantiates all providers named in cfg, wrapping each in a
// circuit-breaking fallback chain when a fallback entry is configured.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*providerSet, error) {
	ps := &providerSet{}
	fallbackCfg := resilience.FallbackConfig{Metrics: metrics}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)

		if fbName := cfg.Providers.STTFallback.Name; fbName != "" {
			fb, err := reg.CreateSTT(cfg.Providers.STTFallback)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fbName, err)
			}
			chain := resilience.NewSTTFallback(p, name, fallbackCfg)
			chain.AddFallback(fbName, fb)
			ps.STT = chain
			slog.Info("provider fallback configured", "kind", "stt", "primary", name, "fallback", fbName)
		}
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", p.ModelID())

		if fbName := cfg.Providers.LLMFallback.Name; fbName != "" {
			fb, err := reg.CreateLLM(cfg.Providers.LLMFallback)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", fbName, err)
			}
			chain := resilience.NewLLMFallback(p, name, fallbackCfg)
			chain.AddFallback(fbName, fb)
			ps.LLM = chain
			slog.Info("provider fallback configured", "kind", "llm", "primary", name, "fallback", fbName)
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name, "model", p.ModelID())

		if fbName := cfg.Providers.EmbeddingsFallback.Name; fbName != "" {
			fb, err := reg.CreateEmbeddings(cfg.Providers.EmbeddingsFallback)
			if err != nil {
				return nil, fmt.Errorf("create embeddings fallback %q: %w", fbName, err)
			}
			chain := resilience.NewEmbeddingsFallback(p, name, fallbackCfg)
			chain.AddFallback(fbName, fb)
			ps.Embeddings = chain
			slog.Info("provider fallback configured", "kind", "embeddings", "primary", name, "fallback", fbName)
		}
	}

	return ps, nil
}

// optString extracts a string value from a provider options map.
func optString(options map[string]any, key string) string {
	if options == nil {
		return ""
	}
	if v, ok := options[key].(string); ok {
		return v
	}
	return ""
}

// ── Run summary ───────────────────────────────────────────────────────────────

func printRunSummary(result *pipeline.Result) {
	fmt.Printf("run %s: %d case(s)\n", result.RunID, len(result.Cases))
	for _, c := range result.Cases {
		line := fmt.Sprintf("  case %d: %s", c.Index, c.Summary)
		if c.Classification != nil {
			line += fmt.Sprintf(" [%s, risk %d]", c.Classification.Category, c.Classification.RiskScore)
		}
		fmt.Println(line)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
