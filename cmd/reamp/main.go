package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-reamp/internal/config"
)

var version = "0.1.0"

var (
	envFile  string
	logLevel string
	cfg      *config.Config
	log      = logrus.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reamp",
	Short: "Render DI recordings through amp models, effects and cabinet IRs",
	Long: `reamp renders a dry (DI) recording offline through an ordered chain of
amp-model, effect and impulse-response stages and writes the result as WAV.

Settings are read from the environment (REAMP_*) and an optional .env file;
command-line flags override both.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one input through a chain",
	Long: `Render a WAV file through the stages listed in a JSON chain file.

Examples:
  reamp render -i di.wav -c chain.json -o out.wav
  reamp render -i di.wav -c chain.json -o out.wav --bit-depth 16`,
	RunE: runRender,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render every job in a manifest",
	Long: `Render the jobs listed in a JSON manifest. A failing job is reported and
the batch continues with the next one.

Examples:
  reamp batch -m manifest.json
  reamp batch -m manifest.json --concurrency 4 --train "nam-train {output}"`,
	RunE: runBatch,
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available plugins and their parameters",
	RunE:  runPlugins,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(pluginsCmd)

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Optional .env file with REAMP_* settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides REAMP_LOG_LEVEL)")

	renderCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input WAV file (required)")
	renderCmd.Flags().StringVarP(&chainPath, "chain", "c", "", "JSON chain file (required)")
	renderCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output WAV file (required)")
	addRenderFlags(renderCmd)

	batchCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "JSON batch manifest (required)")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Jobs rendered at once (overrides REAMP_CONCURRENCY)")
	batchCmd.Flags().StringVar(&trainCommand, "train", "", "Training command run on each output; {output} is replaced by its path")
	batchCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for job status (overrides REAMP_REDIS_ADDR)")
	addRenderFlags(batchCmd)

	_ = renderCmd.MarkFlagRequired("input")
	_ = renderCmd.MarkFlagRequired("chain")
	_ = renderCmd.MarkFlagRequired("output")
	_ = batchCmd.MarkFlagRequired("manifest")
}

func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&bitDepth, "bit-depth", 0, "Output bit depth: 16, 24 or 32 (overrides REAMP_BIT_DEPTH)")
	cmd.Flags().StringVar(&convMethod, "conv-method", "", "Convolution method: auto, direct or fft (overrides REAMP_CONV_METHOD)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	files := []string{}
	if envFile != "" {
		files = append(files, envFile)
	}

	if err := config.LoadEnv(files...); err != nil {
		return err
	}

	c, err := config.FromEnv()
	if err != nil {
		return err
	}

	if logLevel != "" {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}

		c.LogLevel = lvl
	}

	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(c.LogLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg = c

	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
