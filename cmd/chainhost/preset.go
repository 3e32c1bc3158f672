package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pluginhost/host/chain"
	"github.com/cwbudde/algo-pluginhost/host/preset"
	"github.com/cwbudde/algo-pluginhost/host/state"
)

func newPresetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage saved chain presets",
	}

	cmd.AddCommand(
		newPresetListCmd(a),
		newPresetSaveCmd(a),
		newPresetShowCmd(a),
		newPresetDeleteCmd(a),
	)

	return cmd
}

func (a *app) withStore(fn func(*preset.Store) error) error {
	store, err := preset.Open(a.cfg.PresetDB)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func newPresetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List preset names",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.withStore(func(s *preset.Store) error {
				names, err := s.List()
				if err != nil {
					return err
				}

				for _, n := range names {
					fmt.Fprintln(a.stdout, n)
				}

				return nil
			})
		},
	}
}

func newPresetSaveCmd(a *app) *cobra.Command {
	var (
		f        chainFlags
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "save name",
		Short: "Save a chain built from flags, or a state file, as a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)

			switch {
			case fromFile != "" && len(f.plugins) > 0:
				return errors.New("--from and --plugin are mutually exclusive")
			case fromFile != "":
				data, err = os.ReadFile(fromFile)
				if err == nil {
					_, err = state.Decode(data)
				}
			case len(f.plugins) > 0:
				data, err = a.buildState(&f)
			default:
				return errors.New("nothing to save: pass --plugin or --from")
			}

			if err != nil {
				return err
			}

			return a.withStore(func(s *preset.Store) error {
				if err := s.Save(args[0], data); err != nil {
					return err
				}

				fmt.Fprintf(a.stdout, "saved preset %q\n", args[0])

				return nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&fromFile, "from", "", "chain state file written by render --save-state")

	return cmd
}

// buildState instantiates the chain f describes and exports it.
func (a *app) buildState(f *chainFlags) ([]byte, error) {
	known, err := a.loadKnown()
	if err != nil {
		return nil, err
	}

	c := chain.New(a.formats, chain.WithLogger(a.logger))
	defer c.Close()

	if err := f.apply(c, known); err != nil {
		return nil, err
	}

	return c.Export()
}

func newPresetShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show name",
		Short: "Print the plugins stored in a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withStore(func(s *preset.Store) error {
				data, err := s.Load(args[0])
				if err != nil {
					return fmt.Errorf("preset %q: %w", args[0], err)
				}

				records, err := state.Decode(data)
				if err != nil {
					return fmt.Errorf("preset %q: %w", args[0], err)
				}

				tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "INDEX\tPLUGIN\tIDENTIFIER\tBYPASSED\tSTATE")

				for _, r := range records {
					st := "-"
					if r.HasState() {
						st = fmt.Sprintf("%d bytes", len(r.State))
					}

					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n",
						r.Index, r.Descriptor, r.Descriptor.Identifier(), r.Bypassed, st)
				}

				return tw.Flush()
			})
		},
	}
}

func newPresetDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete name",
		Aliases: []string{"rm"},
		Short:   "Delete a preset",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withStore(func(s *preset.Store) error {
				if err := s.Delete(args[0]); err != nil {
					return fmt.Errorf("preset %q: %w", args[0], err)
				}

				fmt.Fprintf(a.stdout, "deleted preset %q\n", args[0])

				return nil
			})
		},
	}
}
