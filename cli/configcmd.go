package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emailbison/config"
	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the config file",
	}
	cmd.AddCommand(
		a.configShowCommand(),
		a.configPathCommand(),
		a.configSetCommand(),
		a.configUnsetCommand(),
	)
	return cmd
}

type optionView struct {
	Value  string        `json:"value" yaml:"value"`
	Source config.Source `json:"source,omitempty" yaml:"source,omitempty"`
}

type configView struct {
	ConfigPath string                    `json:"config_path,omitempty" yaml:"config_path,omitempty"`
	Options    map[config.Key]optionView `json:"options" yaml:"options"`
	Valid      bool                      `json:"valid" yaml:"valid"`
	Error      string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

func (a *app) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective settings and where each one comes from",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			r := a.newResolver()
			src, err := a.sources(r)
			if err != nil {
				return err
			}

			view := configView{ConfigPath: r.ConfigPath(), Options: map[config.Key]optionView{}, Valid: true}
			explained := config.Explain(src)
			for _, key := range config.Keys() {
				v, _, _ := src.Lookup(key)
				if key == config.KeyAPIToken {
					v = config.Mask(v)
				}
				view.Options[key] = optionView{Value: v, Source: explained[key]}
			}
			if _, err := config.Resolve(src); err != nil {
				view.Valid = false
				view.Error = bisonerrors.Classify(err).Message
			}

			if a.printer.Format().Structured() {
				return a.printer.Print(view)
			}
			rows := make([]map[string]any, 0, len(view.Options))
			for _, key := range config.Keys() {
				o := view.Options[key]
				rows = append(rows, map[string]any{"option": string(key), "value": orDash(o.Value), "source": orDash(string(o.Source))})
			}
			if err := a.printer.Table([]string{"option", "value", "source"}, rows); err != nil {
				return err
			}
			if view.ConfigPath != "" {
				a.printer.Success("Config file: %s", view.ConfigPath)
			}
			if !view.Valid {
				a.printer.Warn("%s", view.Error)
			}
			return nil
		},
	}
}

type pathView struct {
	Loaded     string   `json:"loaded,omitempty" yaml:"loaded,omitempty"`
	Target     string   `json:"target" yaml:"target"`
	Candidates []string `json:"candidates" yaml:"candidates"`
}

func (a *app) configPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show which config files are considered",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			r := a.newResolver()
			view := pathView{
				Target:     a.saveConfig().TargetPath(),
				Candidates: r.CandidatePaths(),
			}
			// The resolver loads the first candidate that exists.
			for _, p := range view.Candidates {
				if _, err := os.Stat(p); err == nil {
					view.Loaded = p
					break
				}
			}
			if a.printer.Format().Structured() {
				return a.printer.Print(view)
			}

			rows := make([]map[string]any, 0, len(view.Candidates))
			for _, p := range view.Candidates {
				state := "missing"
				if p == view.Loaded {
					state = "loaded"
				} else if _, err := os.Stat(p); err == nil {
					state = "ignored"
				}
				rows = append(rows, map[string]any{"path": p, "state": state})
			}
			return a.printer.Table([]string{"path", "state"}, rows)
		},
	}
}

func (a *app) configSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store an option in the config file",
		Long:  fmt.Sprintf("Store an option in the config file. Keys: %v.", config.Keys()),
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if key == string(config.KeyAPIToken) {
				a.printer.AddSecret(value)
			}
			save := a.saveConfig()
			if err := save.Set(key, value); err != nil {
				return err
			}
			a.printer.Success("Set %s in %s.", key, save.TargetPath())
			return nil
		},
	}
}

func (a *app) configUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove an option from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			save := a.saveConfig()
			if err := save.Unset(args[0]); err != nil {
				return err
			}
			a.printer.Success("Removed %s from %s.", args[0], save.TargetPath())
			return nil
		},
	}
}

// saveConfig targets the explicit config file when one is named, otherwise
// the preferred search location.
func (a *app) saveConfig() config.SaveConfig {
	if a.global.configPath != "" {
		return config.SaveConfig{Path: a.global.configPath}
	}
	if v, ok := a.opts.LookupEnv(config.DefaultEnvPrefix + "CONFIG"); ok && v != "" {
		return config.SaveConfig{Path: v}
	}
	if len(a.opts.ConfigPaths) > 0 {
		return config.SaveConfig{Path: a.opts.ConfigPaths[0]}
	}
	return config.SaveConfig{}
}
