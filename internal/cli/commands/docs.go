package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
)

// NewQueryCommand creates the query command
func NewQueryCommand(flags *globalFlags) *cobra.Command {
	var (
		selected []string
		wheres   []string
		orders   []string
		limit    int
		offset   int
		count    bool
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Query documents of a collection",
		Long: `Query prints the matching documents of a collection as JSON lines.

Conditions use the form field<op>value with one of the operators
==, =, <, <=, >, >=, " in ", " array-contains " and " array-contains-any ".
Values of in and array-contains-any are comma separated.

Examples:
  docmap query tasks --where "points>=3" --order points:desc --limit 10
  docmap query tasks --where "tags array-contains go" --select title,tags
  docmap query tasks --where "assignee=e1" --count`,
		Args: cobra.ExactArgs(1),
		RunE: withEnv(flags, func(cmd *cobra.Command, e *env, args []string) error {
			c, err := e.records(args[0])
			if err != nil {
				return err
			}

			c, err = applyQueryFlags(c, selected, wheres, orders)
			if err != nil {
				return err
			}

			if count {
				n, err := c.Count(cmd.Context(), nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}

			if cmd.Flags().Changed("limit") {
				c = c.Limit(limit)
			}
			if cmd.Flags().Changed("offset") {
				c = c.Offset(offset)
			}

			for doc, err := range c.All(cmd.Context()) {
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), *doc, pretty); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&selected, "select", nil, "fields to return (default all)")
	cmd.Flags().StringArrayVarP(&wheres, "where", "w", nil, "filter condition, repeatable")
	cmd.Flags().StringArrayVarP(&orders, "order", "o", nil, "order by field[:asc|desc], repeatable")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of documents to skip")
	cmd.Flags().BoolVar(&count, "count", false, "print the number of matching documents")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")

	return cmd
}

func applyQueryFlags(c *collection.Collection[document.Record], selected, wheres, orders []string) (*collection.Collection[document.Record], error) {
	if len(selected) > 0 {
		c = c.Select(selected...)
	}
	for _, expr := range wheres {
		w, err := query.ParseCondition(expr)
		if err != nil {
			return nil, err
		}
		c = c.WhereOp(w.Key, w.Operator, w.Value)
	}
	for _, expr := range orders {
		o, err := query.ParseOrder(expr)
		if err != nil {
			return nil, err
		}
		c = c.OrderBy(o.Key, o.Direction)
	}
	return c, nil
}

// NewGetCommand creates the get command
func NewGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one document with its references resolved",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(flags, func(cmd *cobra.Command, e *env, args []string) error {
			c, err := e.records(args[0])
			if err != nil {
				return err
			}

			doc, err := c.Find(cmd.Context(), args[1])
			if err != nil {
				if collection.IsNotFound(err) {
					return fmt.Errorf("%s/%s: %w", args[0], args[1], err)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), *doc, true)
		}),
	}
}

// NewPutCommand creates the put command
func NewPutCommand(flags *globalFlags) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "put <collection> <json|->",
		Short: "Create or replace a document",
		Long: `Put stores a JSON document. A document carrying an id replaces the stored
one; a document without id is created and its generated id printed.
Reference fields take the referenced id or an object with an id.
Use - to read the document from standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: withEnv(flags, func(cmd *cobra.Command, e *env, args []string) error {
			c, err := e.records(args[0])
			if err != nil {
				return err
			}

			raw := []byte(args[1])
			if args[1] == "-" {
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("failed to read document: %w", err)
				}
			}
			doc, err := parseDocument(raw)
			if err != nil {
				return err
			}

			idKey := c.Node().IDKey
			if id, _ := doc[idKey].(string); id != "" && !create {
				if err := c.Update(cmd.Context(), &doc); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s/%s stored", args[0], id), e.noColor)
				return nil
			}

			if err := c.Create(cmd.Context(), &doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc[idKey])
			return nil
		}),
	}

	cmd.Flags().BoolVar(&create, "create", false, "fail when a document with the same id exists")
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(flags, func(cmd *cobra.Command, e *env, args []string) error {
			c, err := e.records(args[0])
			if err != nil {
				return err
			}

			doc := document.Record{c.Node().IDKey: args[1]}
			if err := c.Delete(cmd.Context(), &doc); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s/%s deleted", args[0], args[1]), e.noColor)
			return nil
		}),
	}
}

// parseDocument decodes a JSON object. Integral numbers become int64.
func parseDocument(raw []byte) (document.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("invalid document: expected a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid document: trailing data after %s", strings.TrimSpace(string(raw[:dec.InputOffset()])))
	}
	return document.Record(document.Numbers(doc).(map[string]any)), nil
}

func writeJSON(w io.Writer, doc document.Record, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
