package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"petqc/pkg/config"
	"petqc/pkg/pipeline"
	"petqc/pkg/tagger"
)

var (
	tagMeta   tagger.Meta
	tagDim    int
	tagHeader string

	integrateHeader string
	integrateOutput string

	tagCmd = &cobra.Command{
		Use:   "tag [raw statistics csv]",
		Short: "Tag a raw per-region statistics file with subject identifiers",
		Args:  cobra.ExactArgs(1),
		RunE:  runTag,
	}

	describeCmd = &cobra.Command{
		Use:   "describe [tagged csv...]",
		Short: "Compute group-level descriptive statistics over tagged result tables",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDescribe,
	}

	integrateCmd = &cobra.Command{
		Use:   "integrate [per-frame csv]",
		Short: "Integrate a per-frame result table over its frame timing",
		Args:  cobra.ExactArgs(1),
		RunE:  runIntegrate,
	}

	qcCmd = &cobra.Command{
		Use:   "qc [manifest yaml]",
		Short: "Evaluate distance metrics, outlier scores and ROC curves for a misalignment study",
		Args:  cobra.ExactArgs(1),
		RunE:  runQC,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// the configuration may not exist or parse yet
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
)

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringVar(&tagMeta.Analysis, "analysis", "results", "Name of the analysis that produced the statistics")
	tagCmd.Flags().StringVar(&tagMeta.Subject, "sub", "", "Subject identifier")
	tagCmd.Flags().StringVar(&tagMeta.Session, "ses", "", "Session identifier")
	tagCmd.Flags().StringVar(&tagMeta.Task, "task", "", "Task identifier")
	tagCmd.Flags().StringVar(&tagMeta.Run, "run", "", "Run identifier")
	tagCmd.Flags().StringVar(&tagMeta.Acquisition, "acq", "", "Acquisition label (parsed from --source when empty)")
	tagCmd.Flags().StringVar(&tagMeta.Reconstruction, "rec", "", "Reconstruction label (parsed from --source when empty)")
	tagCmd.Flags().StringVar(&tagMeta.Source, "source", "", "Image filename the statistics were measured on")
	tagCmd.Flags().IntVar(&tagDim, "dim", 3, "Dimensionality of the measured image (4 for dynamic scans)")
	tagCmd.Flags().StringVar(&tagHeader, "header", "", "JSON header with frame timing, used when --dim=4")

	rootCmd.AddCommand(describeCmd)

	rootCmd.AddCommand(integrateCmd)
	integrateCmd.Flags().StringVar(&integrateHeader, "header", "", "JSON header with frame timing")
	integrateCmd.Flags().StringVarP(&integrateOutput, "output", "o", "", "Output path (default: input with _4d replaced by _3d)")

	rootCmd.AddCommand(qcCmd)

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runTag(cmd *cobra.Command, args []string) error {
	r, err := getRunner()
	if err != nil {
		return err
	}
	res, err := r.TagResults(cmd.Context(), pipeline.TagRequest{
		Input:  args[0],
		Meta:   tagMeta,
		Dim:    tagDim,
		Header: tagHeader,
	})
	if err != nil {
		return err
	}
	if res.Path4D != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Path4D)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Path3D)
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	r, err := getRunner()
	if err != nil {
		return err
	}
	tables, err := r.Describe(cmd.Context(), args)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d groups\n",
			filepath.Join(cfg.Output.Dir, pipeline.DescriptiveName(cfg.Output.Label, t.Name)), len(t.Rows))
	}
	return nil
}

// integratedPath derives the _3d path of a per-frame table
func integratedPath(input string) string {
	dir, base := filepath.Split(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.TrimSuffix(stem, "_4d")
	return filepath.Join(dir, stem+"_3d"+ext)
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	r, err := getRunner()
	if err != nil {
		return err
	}
	output := integrateOutput
	if output == "" {
		output = integratedPath(args[0])
	}
	t, err := r.Integrate(cmd.Context(), args[0], integrateHeader, output)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\n", output, len(t))
	return nil
}

func runQC(cmd *cobra.Command, args []string) error {
	r, err := getRunner()
	if err != nil {
		return err
	}
	res, err := r.RunQC(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	for _, a := range res.Artifacts {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration at %s\n", path)
	return nil
}
