package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/builtin"
	"github.com/cwbudde/algo-pluginhost/host/chain"
	"github.com/cwbudde/algo-pluginhost/host/metrics"
	"github.com/cwbudde/algo-pluginhost/host/preset"
)

type renderFlags struct {
	chainFlags

	stateFile   string
	presetName  string
	blockSize   int
	saveState   string
	metricsFile string
}

func newRenderCmd(a *app) *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render [flags] in.wav out.wav",
		Short: "Run a WAV file through a plugin chain",
		Long: `Render builds a chain, optionally restoring a saved state or preset
first, appends the --plugin entries after it and processes the input file
block by block at the file's sample rate.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.render(args[0], args[1], &f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.stateFile, "state", "", "chain state file to restore before appending plugins")
	cmd.Flags().StringVar(&f.presetName, "preset", "", "preset to restore before appending plugins")
	cmd.Flags().IntVar(&f.blockSize, "block-size", 0, "processing block size (default from configuration)")
	cmd.Flags().StringVar(&f.saveState, "save-state", "", "write the chain state to this file after rendering")
	cmd.Flags().StringVar(&f.metricsFile, "metrics", "", "write chain metrics in Prometheus text format to this file")

	return cmd
}

func (a *app) render(inPath, outPath string, f *renderFlags) error {
	if f.stateFile != "" && f.presetName != "" {
		return errors.New("--state and --preset are mutually exclusive")
	}

	blockSize := f.blockSize
	if blockSize <= 0 {
		blockSize = a.cfg.BlockSize
	}

	in, err := readWAV(inPath)
	if err != nil {
		return err
	}

	known, err := a.loadKnown()
	if err != nil {
		return err
	}

	c := chain.New(a.formats,
		chain.WithLogger(a.logger),
		chain.WithContext(float64(in.sampleRate), blockSize),
		chain.WithScratchChannels(len(in.channels)))
	defer c.Close()

	reg := prometheus.NewRegistry()

	_, detach, err := metrics.Instrument(c, reg, prometheus.Labels{"chain": "render"})
	if err != nil {
		return err
	}
	defer detach()

	if err := a.restoreInto(c, f); err != nil {
		return err
	}

	if err := f.apply(c, known); err != nil {
		return err
	}

	if err := c.Prepare(float64(in.sampleRate), blockSize); err != nil {
		return err
	}

	frames := in.numFrames()
	block := make([][]float64, len(in.channels))

	for pos := 0; pos < frames; pos += blockSize {
		end := min(pos+blockSize, frames)
		for ch := range in.channels {
			block[ch] = in.channels[ch][pos:end]
		}

		c.Process(buffer.FromChannels(block), nil)
	}

	fmt.Fprintf(a.stdout, "rendered %d frames through %d plugins at %d Hz\n", frames, c.Count(), in.sampleRate)
	a.printAnalysis(c, in.sampleRate)
	c.Release()

	if err := writeWAV(outPath, in); err != nil {
		return err
	}

	if f.saveState != "" {
		data, err := c.Export()
		if err != nil {
			return err
		}

		if err := os.WriteFile(f.saveState, data, 0o644); err != nil {
			return err
		}
	}

	if f.metricsFile != "" {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			return err
		}
	}

	return nil
}

// restoreInto imports the state file or preset named by f, if any.
func (a *app) restoreInto(c *chain.Chain, f *renderFlags) error {
	var data []byte

	switch {
	case f.stateFile != "":
		b, err := os.ReadFile(f.stateFile)
		if err != nil {
			return err
		}

		data = b

	case f.presetName != "":
		store, err := preset.Open(a.cfg.PresetDB)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := store.Load(f.presetName)
		if err != nil {
			return fmt.Errorf("preset %q: %w", f.presetName, err)
		}

		data = b

	default:
		return nil
	}

	report, err := c.Import(data)
	if err != nil {
		return err
	}

	a.reportImport(report)

	return nil
}

// printAnalysis reports what built-in analyzers in the chain measured.
func (a *app) printAnalysis(c *chain.Chain, sampleRate int) {
	for i := range c.Count() {
		switch p := c.PluginAt(i).(type) {
		case *builtin.Meter:
			for ch := range p.NumInputChannels() {
				fmt.Fprintf(a.stdout, "[%d] peak ch%d: %.1f dBFS\n", i, ch, p.HoldDB(ch))
			}

		case *builtin.Spectrum:
			mags, frames := p.Magnitudes(nil)
			if frames == 0 || len(mags) == 0 {
				continue
			}

			peak := 0
			for bin, m := range mags {
				if m > mags[peak] {
					peak = bin
				}
			}

			hz := float64(peak) * float64(sampleRate) / float64(p.FFTSize())
			fmt.Fprintf(a.stdout, "[%d] spectrum peak: %.1f Hz (%d frames)\n", i, hz, frames)
		}
	}
}
