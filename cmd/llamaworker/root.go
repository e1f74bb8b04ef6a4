package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamaworker"
	"llamaworker/internal/config"
	"llamaworker/internal/engine"
	"llamaworker/internal/worker"
	"llamaworker/llmerr"
	"llamaworker/sampler"
)

// cliConfig collects the persistent flags shared by every subcommand,
// built the way internal/testctl/cobra_root.go's Config/buildRootCmdWith
// wires persistent flags to a struct instead of reading cobra.Command
// flag values ad hoc in every RunE.
type cliConfig struct {
	modelPath    string
	modelConfig  string
	samplerPreset string
	prompt       string
	maxContext   int
	batchSize    int
	logLevel     string
}

func newRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:           "llamaworker",
		Short:         "Sample CLI driving the llamaworker client façade end to end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.modelPath, "model", "", "path to a GGUF model file")
	root.PersistentFlags().StringVar(&cfg.modelConfig, "config", "", "path to a TOML model-defaults file (internal/config.ModelDefaults)")
	root.PersistentFlags().StringVar(&cfg.samplerPreset, "sampler-preset", "", "path to a YAML sampler-chain preset file")
	root.PersistentFlags().StringVar(&cfg.prompt, "prompt", "", "prompt text to tokenize and ingest before generating")
	root.PersistentFlags().IntVar(&cfg.maxContext, "context-size", 2048, "context window size in tokens, used when --config is not given")
	root.PersistentFlags().IntVar(&cfg.batchSize, "batch-size", 512, "decode batch width in tokens, used when --config is not given")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "info", "zerolog level: debug|info|warn|error|disabled")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return installLogger(cfg.logLevel)
	}

	root.AddCommand(newRunCmd(cfg))
	return root
}

func installLogger(level string) error {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return llmerr.Wrap(llmerr.UnknownLogLevel, "--log-level "+level, err)
	}
	l = l.Level(lvl)
	worker.SetLogger(l)
	engine.SetLogger(l)
	return nil
}

func newRunCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the model, ingest the prompt, and generate until EOS or context-full",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cfg)
		},
	}
}

func runGenerate(ctx context.Context, cfg *cliConfig) error {
	if cfg.modelPath == "" {
		return fmt.Errorf("--model is required")
	}

	modelParams := engine.ModelParams{}
	contextParams := engine.ContextParams{
		ContextSizeTokens: cfg.maxContext,
		BatchSizeTokens:   cfg.batchSize,
		ComputeAllLogits:  true,
	}
	if cfg.modelConfig != "" {
		defaults, err := config.LoadModelDefaults(cfg.modelConfig)
		if err != nil {
			return fmt.Errorf("loading model config: %w", err)
		}
		modelParams = defaults.ModelParams()
		contextParams = defaults.ContextParams()
	}

	chain := []sampler.Sampler{sampler.Temperature{Value: 0.8}, sampler.TopP{P: 0.95}, sampler.Probabilistic{}}
	if cfg.samplerPreset != "" {
		resolved, err := config.LoadSamplerPreset(cfg.samplerPreset, sampler.DefaultRegistry())
		if err != nil {
			return fmt.Errorf("loading sampler preset: %w", err)
		}
		chain = resolved
	}

	client := llamaworker.Open(engine.NewCGO())
	defer client.Close()

	fmt.Fprintf(os.Stderr, "loading %s...\n", cfg.modelPath)
	model, err := client.LoadModel(ctx, cfg.modelPath, modelParams, func(fraction float32) {
		fmt.Fprintf(os.Stderr, "\rloading... %.0f%%", fraction*100)
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	defer client.FreeModel(model)

	ictx, err := client.NewContext(model, contextParams)
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	defer client.FreeContext(ictx)

	if _, _, err := client.Tokenize(ictx, cfg.prompt); err != nil {
		return fmt.Errorf("tokenize: %w", err)
	}

	ingest, err := client.Ingest(ctx, ictx)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if cancelled, err := ingest.Wait(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	} else if cancelled {
		return fmt.Errorf("ingest cancelled")
	}

	stream, err := client.Generate(ctx, ictx, chain)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	for {
		tok, ok, err := stream.Next()
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if !ok {
			break
		}
		fmt.Print(tok.Text)
	}
	fmt.Println()
	return nil
}
