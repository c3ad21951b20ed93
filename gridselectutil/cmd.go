/*
Copyright © 2026 the GridSelect authors.
This file is part of GridSelect.

GridSelect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GridSelect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GridSelect.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gridselectutil provides the command-line interface for
// browsing, previewing and exporting gridded datasets.
package gridselectutil

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/gridselect"
	"github.com/spatialmodel/gridselect/ncf"
	"github.com/spatialmodel/gridselect/render"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GridSelect.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "source",
			usage: `
              source specifies the NetCDF dataset to operate on.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "variables",
			usage: `
              variables specifies the data variables to include. The
              default is all data variables in the dataset.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{statsCmd.Flags(), exportCmd.Flags()},
		},
		{
			name: "variable",
			usage: `
              variable specifies the single data variable to preview.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{previewCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the output file location.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags(), previewCmd.Flags(), exportCmd.Flags()},
		},
		{
			name: "colors",
			usage: `
              colors specifies the number of colors in the preview
              heatmap palette.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{previewCmd.Flags()},
		},
		{
			name: "timeout",
			usage: `
              timeout specifies the maximum time in seconds to wait for
              the dataset to open and statistics to be computed.`,
			defaultVal: 300,
			flagsets:   []*pflag.FlagSet{exportCmd.Flags()},
		},
		{
			name: "x",
			usage: `
              x specifies the x (longitude) coordinate to locate.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{locateCmd.Flags()},
		},
		{
			name: "y",
			usage: `
              y specifies the y (latitude) coordinate to locate.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{locateCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDSELECT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(variablesCmd)
	Root.AddCommand(statsCmd)
	Root.AddCommand(previewCmd)
	Root.AddCommand(exportCmd)
	Root.AddCommand(locateCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridselect: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridselect",
	Short: "Browse, preview and export gridded geophysical datasets.",
	Long: `GridSelect browses NetCDF-formatted gridded datasets, previews their
variables as heatmap images, and exports variable selections with summary
statistics. Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'GRIDSELECT_var' where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GridSelect.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GridSelect v%s\n", gridselect.Version)
	},
	DisableAutoGenTag: true,
}

var variablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List the data variables in a dataset.",
	Long: `variables lists the data variables in the dataset specified by the
--source flag, along with their descriptions and units where available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := checkSource(Cfg.GetString("source"))
		if err != nil {
			return err
		}
		f, err := ncf.Open(source, gridselect.ModeBrowse)
		if err != nil {
			return err
		}
		defer f.Close()
		for _, v := range f.Variables() {
			line := v
			if d := f.Description(v); d != "" {
				line += ": " + d
			}
			if u := f.Units(v); u != "" {
				line += " [" + u + "]"
			}
			cmd.Println(line)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute summary statistics for dataset variables.",
	Long: `stats computes summary statistics for the variables specified by the
--variables flag (by default, all data variables) and writes them in TOML
format to the file specified by the --output flag, or to standard output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := checkSource(Cfg.GetString("source"))
		if err != nil {
			return err
		}
		variables, err := cast.ToStringSliceE(Cfg.Get("variables"))
		if err != nil {
			return err
		}
		f, err := ncf.Open(source, gridselect.ModeBrowse)
		if err != nil {
			return err
		}
		defer f.Close()
		if len(variables) == 0 {
			variables = f.Variables()
		}
		stats := make(map[string]*gridselect.Stats)
		for _, v := range variables {
			st, err := f.Statistics(v, nil)
			if err != nil {
				return err
			}
			stats[v] = st
		}
		w := cmd.OutOrStdout()
		if output := Cfg.GetString("output"); output != "" {
			ff, err := os.Create(output)
			if err != nil {
				return err
			}
			defer ff.Close()
			w = ff
		}
		return writeSummary(w, f, variables, stats)
	},
	DisableAutoGenTag: true,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render a heatmap preview of a dataset variable.",
	Long: `preview renders the variable specified by the --variable flag as a
heatmap and writes it as a PNG image to the file specified by the --output
flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := checkSource(Cfg.GetString("source"))
		if err != nil {
			return err
		}
		variable := Cfg.GetString("variable")
		if variable == "" {
			return fmt.Errorf("gridselect: no variable specified; use the --variable flag")
		}
		output := Cfg.GetString("output")
		if output == "" {
			return fmt.Errorf("gridselect: no output file specified; use the --output flag")
		}
		f, err := ncf.Open(source, gridselect.ModeBrowse)
		if err != nil {
			return err
		}
		defer f.Close()
		rn := render.New()
		rn.Colors = Cfg.GetInt("colors")
		img, err := rn.Render(context.Background(), f, variable)
		if err != nil {
			return err
		}
		ff, err := os.Create(output)
		if err != nil {
			return err
		}
		defer ff.Close()
		return png.Encode(ff, img)
	},
	DisableAutoGenTag: true,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export selected variables to a new dataset.",
	Long: `export runs the full selection lifecycle on the dataset specified by
the --source flag: it opens the dataset, selects the variables specified by
the --variables flag (by default, all data variables), computes their
summary statistics, and writes the selection to the NetCDF file specified
by the --output flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := checkSource(Cfg.GetString("source"))
		if err != nil {
			return err
		}
		output := Cfg.GetString("output")
		if output == "" {
			return fmt.Errorf("gridselect: no output file specified; use the --output flag")
		}
		variables, err := cast.ToStringSliceE(Cfg.Get("variables"))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(Cfg.GetInt("timeout"))*time.Second)
		defer cancel()

		ss, err := NewSession(ncf.Opener, nil)
		if err != nil {
			return err
		}
		defer ss.Close()
		available, err := ss.Choose(ctx, source)
		if err != nil {
			return err
		}
		if len(variables) == 0 {
			variables = available
		}
		fr, err := ss.Confirm(ctx, variables)
		if err != nil {
			return err
		}
		defer fr.Reader.Close()
		src, ok := fr.Reader.(*ncf.File)
		if !ok {
			return fmt.Errorf("gridselect: reader %T cannot be exported", fr.Reader)
		}
		if err := ncf.Export(output, src, fr.Variables, fr.Stats); err != nil {
			return err
		}
		cmd.Printf("exported %d variables from %s to %s\n", len(fr.Variables), source, output)
		return nil
	},
	DisableAutoGenTag: true,
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Find the grid cell containing a point.",
	Long: `locate finds the row and column indices of the grid cell containing
the point specified by the --x and --y flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := checkSource(Cfg.GetString("source"))
		if err != nil {
			return err
		}
		f, err := ncf.Open(source, gridselect.ModeFull)
		if err != nil {
			return err
		}
		defer f.Close()
		row, col, err := f.Locate(Cfg.GetFloat64("x"), Cfg.GetFloat64("y"))
		if err != nil {
			return err
		}
		cmd.Printf("row: %d, col: %d\n", row, col)
		return nil
	},
	DisableAutoGenTag: true,
}
