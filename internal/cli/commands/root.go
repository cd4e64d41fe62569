package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	configPath string
	schemaPath string
	noColor    bool
}

// reportedError is an error whose message was already written for the user
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "docmap",
		Short: "Query and edit documents through a declared schema",
		Long: color.CyanString(`docmap - object-document mapper

docmap reads document declarations from a schema file, resolves the
references between them and runs queries against the configured store
(memory, sqlite, postgres, redis or a JSON file).

Configuration is read from docmap.yaml and DOCMAP_* environment variables.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ./docmap.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.schemaPath, "schema", "", "schema file (overrides schema.path)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewSchemaCommand(flags))
	rootCmd.AddCommand(NewQueryCommand(flags))
	rootCmd.AddCommand(NewGetCommand(flags))
	rootCmd.AddCommand(NewPutCommand(flags))
	rootCmd.AddCommand(NewDeleteCommand(flags))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the docmap version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "docmap version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
