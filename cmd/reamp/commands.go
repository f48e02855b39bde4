package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-reamp/audiofile"
	"github.com/cwbudde/algo-reamp/batch"
	"github.com/cwbudde/algo-reamp/chain"
	"github.com/cwbudde/algo-reamp/dsp/conv"
	"github.com/cwbudde/algo-reamp/internal/jobstore"
	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-reamp/plugin/builtin"
	"github.com/cwbudde/algo-reamp/render"
)

var (
	inputPath    string
	chainPath    string
	outputPath   string
	manifestPath string
	bitDepth     int
	convMethod   string
	concurrency  int
	trainCommand string
	redisAddr    string
)

// renderSettings merges flags over the loaded config.
type renderSettings struct {
	bitDepth int
	method   conv.Method
}

func resolveRenderSettings() (renderSettings, error) {
	s := renderSettings{bitDepth: cfg.BitDepth, method: cfg.ConvMethod}

	if bitDepth > 0 {
		s.bitDepth = bitDepth
	}

	if convMethod != "" {
		m, err := conv.ParseMethod(convMethod)
		if err != nil {
			return s, err
		}

		s.method = m
	}

	return s, nil
}

func newHost() *plugin.Registry {
	return builtin.NewRegistry(builtin.WithLogger(log))
}

func runRender(cmd *cobra.Command, _ []string) error {
	settings, err := resolveRenderSettings()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	descs, err := loadChain(chainPath)
	if err != nil {
		return err
	}

	input, err := audiofile.Read(inputPath)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"input":    inputPath,
		"frames":   input.Frames(),
		"channels": input.NumChannels(),
		"rate":     input.SampleRate,
		"stages":   len(descs),
	}).Info("rendering")

	builder := chain.NewBuilder(newHost(),
		chain.WithLogger(log),
		chain.WithConvolutionOptions(conv.WithMethod(settings.method)),
	)

	handles, err := builder.Build(ctx, input, descs)
	if err != nil {
		return err
	}

	bar := newProgressBar(cmd.ErrOrStderr(), filepath.Base(outputPath))
	renderer := render.New(
		render.WithLogger(log),
		render.WithProgress(bar.Update),
	)

	out, err := renderer.Render(ctx, input, handles)
	if err != nil {
		if errors.Is(err, render.ErrCancelled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, nothing written")
		}

		return err
	}

	if err := audiofile.Write(outputPath, out, settings.bitDepth); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"output": outputPath, "frames": out.Frames(), "peak": out.Peak()}).Info("done")

	return nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	settings, err := resolveRenderSettings()
	if err != nil {
		return err
	}

	jobs, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := []batch.Option{
		batch.WithLogger(log),
		batch.WithBitDepth(settings.bitDepth),
		batch.WithConcurrency(firstPositive(concurrency, cfg.Concurrency)),
		batch.WithBuilderOptions(chain.WithConvolutionOptions(conv.WithMethod(settings.method))),
		batch.OnResult(func(res batch.JobResult) {
			line := fmt.Sprintf("[%d/%d] %-10s %s", res.Index+1, len(jobs), res.Status, res.Job.Name)
			if res.Err != nil {
				line += ": " + res.Err.Error()
			}

			fmt.Fprintln(cmd.OutOrStdout(), line)
		}),
	}

	if line := firstNonEmpty(trainCommand, cfg.TrainCommand); line != "" {
		trainer, err := batch.ParseTrainer(line)
		if err != nil {
			return err
		}

		opts = append(opts, batch.WithTrainer(trainer))
	}

	if addr := firstNonEmpty(redisAddr, cfg.RedisAddr); addr != "" {
		store, rdb, err := jobstore.Dial(ctx, addr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()

		opts = append(opts, batch.WithStatusStore(store))
	} else {
		opts = append(opts, batch.WithStatusStore(batch.NewMemoryStore()))
	}

	results, err := batch.NewRunner(newHost(), opts...).Run(ctx, jobs)

	failed := 0
	for _, res := range results {
		if res.Status != batch.StatusDone {
			failed++
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d jobs succeeded\n", len(results)-failed, len(results))

	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}

	return nil
}

func runPlugins(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	host := newHost()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tVENDOR\tCATEGORY\tPARAMETERS")

	for _, info := range host.Available() {
		unit, err := host.Instantiate(ctx, info.ID)
		if err != nil {
			return err
		}

		var params []string
		for _, p := range unit.Parameters() {
			params = append(params, fmt.Sprintf("%s[%g..%g]=%g", p.ID, p.Min, p.Max, p.Default))
		}

		_ = unit.Close()

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.ID, info.Name, info.Vendor, info.Category, strings.Join(params, " "))
	}

	return w.Flush()
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}

	return 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
