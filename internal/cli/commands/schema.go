package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema file",
	}
	cmd.AddCommand(newSchemaValidateCommand(flags))
	return cmd
}

func newSchemaValidateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Resolve the schema file and print its documents",
		Long: `Validate declares every document of the schema file, resolves the
references between them and prints the resolved graph. Reference cycles
are allowed and listed as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			registry, err := loadRegistry(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			graph, err := registry.ResolveAll()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printGraph(cmd, graph, flags.noColor)

			for _, cycle := range graph.Cycles() {
				path := strings.Join(append(cycle, cycle[0]), " -> ")
				ui.Warning("reference cycle: "+path, flags.noColor).Write(out)
			}

			ui.WriteSuccess(out, fmt.Sprintf("%s: %d documents resolved", cfg.Schema.Path, graph.Len()), flags.noColor)
			return nil
		},
	}
}

func printGraph(cmd *cobra.Command, graph *schema.Graph, noColor bool) {
	table := ui.NewTable(cmd.OutOrStdout(), noColor, "COLLECTION", "TYPE", "ID KEY", "REFERENCES")
	for _, node := range graph.Nodes() {
		refs := make([]string, 0, len(node.References))
		for _, field := range node.ReferenceFields() {
			refs = append(refs, field+" -> "+node.References[field].CollectionName)
		}
		table.AddRow(node.CollectionName, node.Type.String(), node.IDKey, strings.Join(refs, ", "))
	}
	table.Render()
}
