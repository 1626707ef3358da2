package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/verso/internal/app"
)

var enginesCmd = &cobra.Command{
	Use:     "engines",
	Aliases: []string{"e"},
	Short:   "List the registered template engines",
	Long: `List every file extension with a registered engine, the engine
implementation and whether it compiles and supports sync mode.

Examples:
  verso engines                   # List engines as a table
  verso engines -f json           # Output as JSON
  verso engines -f yaml           # Output as YAML`,
	RunE: runEngines,
}

var enginesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(enginesCmd)

	enginesFlags = AddStandardFlags(enginesCmd, "output")
}

// engineInfo describes one registered engine.
type engineInfo struct {
	Ext     string `json:"ext" yaml:"ext"`
	Engine  string `json:"engine" yaml:"engine"`
	Compile bool   `json:"compile" yaml:"compile"`
	Sync    bool   `json:"sync" yaml:"sync"`
}

func runEngines(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	b, err := newBuilder(cfg, logger, enginesFlags)
	if err != nil {
		return err
	}
	a, err := b.NewApp()
	if err != nil {
		return err
	}

	infos := listEngines(a)
	w := cmd.OutOrStdout()
	switch enginesFlags.Format {
	case "json":
		return outputEnginesJSON(w, infos)
	case "yaml":
		return outputEnginesYAML(w, infos)
	case "table":
		return outputEnginesTable(w, infos)
	default:
		return fmt.Errorf("unsupported format: %s", enginesFlags.Format)
	}
}

func listEngines(a *app.App) []engineInfo {
	reg := a.Engines()
	exts := reg.Extensions()
	infos := make([]engineInfo, 0, len(exts))
	for _, ext := range exts {
		e, ok := reg.Get(ext)
		if !ok {
			continue
		}
		infos = append(infos, engineInfo{
			Ext:     ext,
			Engine:  strings.TrimPrefix(fmt.Sprintf("%T", e.Impl()), "*"),
			Compile: e.CanCompile(),
			Sync:    e.SupportsSync(),
		})
	}
	return infos
}

func outputEnginesJSON(w io.Writer, infos []engineInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(infos)
}

func outputEnginesYAML(w io.Writer, infos []engineInfo) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(infos)
}

func outputEnginesTable(w io.Writer, infos []engineInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "EXT\tENGINE\tCOMPILE\tSYNC")
	fmt.Fprintln(tw, "---\t------\t-------\t----")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Ext, info.Engine, yesNo(info.Compile), yesNo(info.Sync))
	}
	fmt.Fprintf(tw, "\nTotal: %d engines\n", len(infos))
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
