package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/followup/internal/config"
	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/logging"
	"github.com/JonMunkholm/followup/internal/workbook"
)

// cliOptions are the flags shared by every step.
type cliOptions struct {
	logLevel    string
	logFormat   string
	concurrency int
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "followup",
		Short:         "Build and update EFW follow-up workbooks from MDL exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flags.IntVar(&opts.concurrency, "concurrency", workbook.DefaultConcurrency, "MDL workbooks read in parallel")
	flags.DurationVar(&opts.timeout, "timeout", core.DefaultRunTimeout, "time limit for the step")

	root.AddCommand(
		stepCmd(opts, core.StepConvertFollowUp, "convert",
			"Convert a follow-up workbook into a reference database",
			followUpFlag, outputDirFlag, outputFlag),
		stepCmd(opts, core.StepMergeReference, "merge-reference",
			"Merge the lines of the latest follow-up into the reference database",
			followUpFlag, referenceFlag, outputFlag),
		stepCmd(opts, core.StepCrossCheck, "cross-check",
			"Add new MDL part numbers to the reference database and write the initial follow-up",
			fleetFlag, mdlDirFlag, referenceFlag, outputDirFlag),
		stepCmd(opts, core.StepBuild, "build",
			"Build the follow-up workbook for a revision",
			fleetFlag, authorsFlag, mdlDirFlag, referenceFlag, revisionFlag, outputDirFlag, outputFlag),
		stepCmd(opts, core.StepBuildTemporary, "build-temp",
			"Build a temporary follow-up without authors",
			fleetFlag, mdlDirFlag, referenceFlag, outputDirFlag, outputFlag),
		stepCmd(opts, core.StepUpdateFollowUp, "update",
			"Carry the work of an old follow-up over to a new one",
			fleetFlag, authorsFlag, oldFollowUpFlag, newFollowUpFlag, outputFlag),
		stepCmd(opts, core.StepNonconformityList, "nc-report",
			"Write the nonconformity list of the current units",
			fleetFlag, mdlDirFlag, previousMDLDirFlag, revisionFlag, outputDirFlag, outputFlag),
		initCmd(),
	)
	return root
}

// requestFlag binds one RunRequest field to a command flag.
type requestFlag func(cmd *cobra.Command, req *core.RunRequest)

func fleetFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.FleetPath, "fleet", "", "fleet file (YAML or JSON)")
}

func authorsFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.AuthorsPath, "authors", "", "author roster file (YAML or JSON)")
}

func mdlDirFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.MDLDir, "mdl-dir", "", "folder with the latest MDL workbooks")
}

func previousMDLDirFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.PreviousMDLDir, "previous-mdl-dir", "", "folder with the MDLs incorporated last time for the revision units")
}

func referenceFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.ReferencePath, "reference", "", "reference database workbook")
}

func followUpFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.FollowUpPath, "follow-up", "", "follow-up workbook")
}

func oldFollowUpFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.OldFollowUp, "old", "", "old follow-up workbook, with the work done so far")
}

func newFollowUpFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.NewFollowUp, "new", "", "new follow-up workbook")
}

func revisionFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.Revision, "revision", "", "revision number used in the output name")
}

func outputDirFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVar(&req.OutputDir, "output-dir", "", "folder for outputs with default names")
}

func outputFlag(cmd *cobra.Command, req *core.RunRequest) {
	cmd.Flags().StringVarP(&req.OutputPath, "output", "o", "", "output workbook path")
}

// stepCmd builds the command running one pipeline step.
func stepCmd(opts *cliOptions, step core.Step, use, short string, bind ...requestFlag) *cobra.Command {
	req := &core.RunRequest{Step: step}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd, opts, *req)
		},
	}
	for _, b := range bind {
		b(cmd, req)
	}
	return cmd
}

func runStep(cmd *cobra.Command, opts *cliOptions, req core.RunRequest) error {
	ctx, cancel := contextWithTimeout(cmd, opts.timeout)
	defer cancel()

	logger := slog.With("step", req.Step.Name())
	pipeline := core.NewPipeline(workbook.New(opts.concurrency), config.Files{})

	start := time.Now()
	res, err := pipeline.Run(ctx, req, logging.Console(cmd.OutOrStdout(), logger))
	if err != nil {
		return err
	}

	logger.Info("step completed",
		"records", res.Stats.Records,
		"flagged", res.Stats.FlaggedRecords,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, out := range res.Outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "> Wrote %s\n", out)
	}
	return nil
}

func initCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write sample fleet and author files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.WriteSamples(dir)
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "> Wrote %s\n", p)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "folder for the sample files")
	return cmd
}
