package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pluginhost/host/builtin"
	"github.com/cwbudde/algo-pluginhost/host/catalog"
	"github.com/cwbudde/algo-pluginhost/host/chain"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
	"github.com/cwbudde/algo-pluginhost/host/vst2"
	"github.com/cwbudde/algo-pluginhost/internal/config"
)

// app is the state shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	cfg     config.Config
	logger  *slog.Logger
	formats *plugin.Registry
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "chainhost",
		Short:         "Scan, chain and run audio plugins",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the configuration")

	root.AddCommand(
		newScanCmd(a),
		newListCmd(a),
		newRenderCmd(a),
		newPresetCmd(a),
	)

	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	a.formats = plugin.NewRegistry()
	a.formats.MustRegister(builtin.NewFormat())
	a.formats.MustRegister(vst2.NewFormat())

	return nil
}

func (a *app) loadKnown() (*catalog.KnownList, error) {
	return catalog.LoadKnownList(a.cfg.CatalogPath)
}

// resolve finds the descriptor a command line reference names. A reference
// is a catalog identifier ("vst2:<uid>", "builtin:gain"), a bare built-in
// UID or a plugin name that matches exactly one known plugin.
func resolve(ref string, known *catalog.KnownList) (plugin.Descriptor, error) {
	if d, ok := known.Lookup(ref); ok {
		return d, nil
	}

	if uid, ok := strings.CutPrefix(ref, builtin.FormatName+":"); ok {
		ref = uid
	}

	if d, ok := builtin.Descriptor(ref); ok {
		return d, nil
	}

	var matches []plugin.Descriptor

	for _, d := range known.Find(ref) {
		if strings.EqualFold(d.Name, ref) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return plugin.Descriptor{}, fmt.Errorf("no plugin matches %q", ref)
	default:
		return plugin.Descriptor{}, fmt.Errorf("%q is ambiguous: %d plugins match, use the identifier", ref, len(matches))
	}
}

// chainFlags are the flags that describe a chain to build.
type chainFlags struct {
	plugins []string
	params  []string
	bypass  []int
}

func (f *chainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.plugins, "plugin", "p", nil, "plugin to append (identifier, built-in uid or name); repeatable")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "parameter to set as index:name=value; repeatable")
	cmd.Flags().IntSliceVar(&f.bypass, "bypass", nil, "chain indices to bypass")
}

// apply appends the plugins to c, then sets bypass flags and parameters.
func (f *chainFlags) apply(c *chain.Chain, known *catalog.KnownList) error {
	for _, ref := range f.plugins {
		d, err := resolve(ref, known)
		if err != nil {
			return err
		}

		if _, err := c.Append(d); err != nil {
			return err
		}
	}

	for _, i := range f.bypass {
		if i < 0 || i >= c.Count() {
			return fmt.Errorf("bypass: index %d out of range (chain has %d plugins)", i, c.Count())
		}

		c.SetBypassed(i, true)
	}

	for _, arg := range f.params {
		p, err := parseParam(arg)
		if err != nil {
			return err
		}

		if err := p.apply(c); err != nil {
			return err
		}
	}

	return nil
}

// parameterized is implemented by plugins with named parameters.
type parameterized interface {
	SetParam(name string, v float64) error
}

type paramSetting struct {
	index int
	name  string
	value float64
}

func parseParam(arg string) (paramSetting, error) {
	idx, rest, ok := strings.Cut(arg, ":")
	if !ok {
		return paramSetting{}, fmt.Errorf("param %q: want index:name=value", arg)
	}

	name, val, ok := strings.Cut(rest, "=")
	if !ok || name == "" {
		return paramSetting{}, fmt.Errorf("param %q: want index:name=value", arg)
	}

	i, err := strconv.Atoi(idx)
	if err != nil {
		return paramSetting{}, fmt.Errorf("param %q: bad index: %w", arg, err)
	}

	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return paramSetting{}, fmt.Errorf("param %q: bad value: %w", arg, err)
	}

	return paramSetting{index: i, name: name, value: v}, nil
}

func (p paramSetting) apply(c *chain.Chain) error {
	inst := c.PluginAt(p.index)
	if inst == nil {
		return fmt.Errorf("param: index %d out of range (chain has %d plugins)", p.index, c.Count())
	}

	settable, ok := inst.(parameterized)
	if !ok {
		d, _ := c.DescriptorAt(p.index)
		return fmt.Errorf("param: %s has no named parameters", d)
	}

	return settable.SetParam(p.name, p.value)
}

// reportImport prints what a partial restore changed.
func (a *app) reportImport(report chain.ImportReport) {
	for _, s := range report.Skipped {
		fmt.Fprintf(a.stderr, "skipped %s (saved at %d): %v\n", s.Descriptor, s.PersistedIndex, s.Err)
	}

	for _, r := range report.Restored {
		if r.StateErr != nil {
			fmt.Fprintf(a.stderr, "%s at %d kept its defaults: %v\n", r.Descriptor, r.Index, r.StateErr)
		}
	}

	for _, r := range report.Drifted() {
		fmt.Fprintf(a.stderr, "%s moved from %d to %d\n", r.Descriptor, r.PersistedIndex, r.Index)
	}
}
