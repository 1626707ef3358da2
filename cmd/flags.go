package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/verso/internal/config"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Render flags
	Output    string   `flag:"output,o" desc:"Output directory" default:""`
	KeepGoing bool     `flag:"keep-going,k" desc:"Render every page and report all failures" default:"false"`
	Data      []string `flag:"data,d" desc:"App data as key=value, repeatable" default:""`
	Trim      bool     `flag:"trim" desc:"Trim whitespace around the page before wrapping" default:"false"`

	// Output flags
	Format  string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet   bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "render":
			addRenderFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		case "verbosity":
			addVerbosityFlags(cmd, flags)
		}
	}

	return flags
}

func addRenderFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Output directory (overrides paths.output)")
	cmd.Flags().BoolVarP(&flags.KeepGoing, "keep-going", "k", false, "Render every page and report all failures")
	cmd.Flags().StringArrayVarP(&flags.Data, "data", "d", nil, "App data as key=value, repeatable")
	cmd.Flags().BoolVar(&flags.Trim, "trim", false, "Trim whitespace around the page before wrapping")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format (table|json|yaml)")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

func addVerbosityFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}
	_, err := f.DataMap()
	return err
}

// DataMap parses the --data values.
func (f *StandardFlags) DataMap() (map[string]any, error) {
	data := make(map[string]any, len(f.Data))
	for _, kv := range f.Data {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid data %q, expected key=value", kv)
		}
		data[k] = v
	}
	return data, nil
}

// Apply overrides configuration values with the flags the user set.
func (f *StandardFlags) Apply(cmd *cobra.Command, cfg *config.Config) {
	if f.Output != "" {
		cfg.Paths.Output = f.Output
	}
	if cmd.Flags().Changed("trim") {
		cfg.Render.Trim = f.Trim
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(flagName)
	}
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormat checks val against the allowed formats.
func ValidateFormat(val string, allowed []string) error {
	if slices.Contains(allowed, val) {
		return nil
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", val, strings.Join(allowed, ", "))
}
