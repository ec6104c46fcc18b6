package minigraph

import (
	"fmt"
	"strings"

	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/records"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Run a Cypher statement and print the rows",
	Long: `Run a Cypher statement and print each row keyed by its RETURN names.
Statements run in read mode unless --write is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Add, remove or probe node labels",
}

var labelsAddCmd = &cobra.Command{
	Use:   "add <ids-file>",
	Short: `Add labels to the nodes listed in a file of {"id": ...} records`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLabelsAdd,
}

var labelsRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a label from every node carrying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			if err := s.db.RemoveNodeLabel(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed label %s\n", args[0])
			return nil
		})
	},
}

var labelsExistsCmd = &cobra.Command{
	Use:   "exists <label>",
	Short: "Report whether any node carries the label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			exists, err := s.db.LabelExists(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		})
	},
}

var attrCmd = &cobra.Command{
	Use:   "attr",
	Short: "Set, remove or inspect a node attribute",
}

var attrSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Copy an attribute from records onto the nodes they identify",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttrSet,
}

var attrRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Null an attribute on every node of a label",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, attr := labelAttr(cmd)
		return withSession(cmd, func(s *session) error {
			removed, err := s.db.RemoveNodeAttr(commandContext(cmd), label, attr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %d %s nodes\n", attr, removed, label)
			return nil
		})
	},
}

var attrExistsCmd = &cobra.Command{
	Use:   "exists",
	Short: "Report whether any node (or relationship) of a label has the attribute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, attr := labelAttr(cmd)
		edge, _ := cmd.Flags().GetBool("edge")
		limit, _ := cmd.Flags().GetInt("search-limit")
		return withSession(cmd, func(s *session) error {
			exists, err := s.db.AttrExists(commandContext(cmd), label, attr, edge, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		})
	},
}

var attrRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Print the minimum and maximum of an attribute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, attr := labelAttr(cmd)
		where, _ := cmd.Flags().GetString("where")
		output, _ := cmd.Flags().GetString("output")
		return withSession(cmd, func(s *session) error {
			ctx := commandContext(cmd)
			minimum, err := s.db.AttrMinimum(ctx, label, attr, where)
			if err != nil {
				return err
			}
			maximum, err := s.db.AttrMaximum(ctx, label, attr, where)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), map[string]any{"min": minimum, "max": maximum}, output)
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create a label or label-property index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		property, _ := cmd.Flags().GetString("property")
		return withSession(cmd, func(s *session) error {
			if err := s.db.SetIndex(commandContext(cmd), label, property); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index created on :%s(%s)\n", label, property)
			return nil
		})
	},
}

var constraintCmd = &cobra.Command{
	Use:   "constraint",
	Short: "Create a uniqueness constraint and print the constraint listing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		property, _ := cmd.Flags().GetString("property")
		output, _ := cmd.Flags().GetString("output")
		return withSession(cmd, func(s *session) error {
			rows, err := s.db.SetConstraint(commandContext(cmd), label, property)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rows, output)
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count <label>",
	Short: "Count the nodes of a label, optionally filtered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		where, _ := cmd.Flags().GetString("where")
		return withSession(cmd, func(s *session) error {
			n, err := s.db.NodeCount(commandContext(cmd), args[0], where)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var degreeCmd = &cobra.Command{
	Use:   "degree <label>",
	Short: "Store each node's relationship count in a property",
	Args:  cobra.ExactArgs(1),
	RunE:  runDegree,
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <rel-type>",
	Short: "Delete duplicate relationships between the same node pair",
	Long: `Delete all but one relationship of the given type between each pair of
nodes, in batches, until a pass removes nothing. --source-prop key=value
restricts the start nodes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDedupe,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe <rel-type>",
	Short: "Delete every relationship of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			if err := s.db.WipeRelationships(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s relationships\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd, labelsCmd, attrCmd, indexCmd, constraintCmd, countCmd, degreeCmd, dedupeCmd, wipeCmd)
	labelsCmd.AddCommand(labelsAddCmd, labelsRemoveCmd, labelsExistsCmd)
	attrCmd.AddCommand(attrSetCmd, attrRemoveCmd, attrExistsCmd, attrRangeCmd)

	queryCmd.Flags().Bool("write", false, "Run in write mode")
	queryCmd.Flags().String("params", "", `Statement parameters as a JSON object, e.g. '{"age": 30}'`)
	queryCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")

	labelsAddCmd.Flags().StringSlice("match", nil, "Labels the nodes must carry (required)")
	labelsAddCmd.Flags().StringSlice("new", nil, "Labels to add (required)")
	labelsAddCmd.Flags().Int("chunk-size", 0, "Ids per statement (default from config)")
	_ = labelsAddCmd.MarkFlagRequired("match")
	_ = labelsAddCmd.MarkFlagRequired("new")

	for _, c := range []*cobra.Command{attrSetCmd, attrRemoveCmd, attrExistsCmd, attrRangeCmd} {
		c.Flags().String("label", "", "Node label (required)")
		c.Flags().String("attr", "", "Attribute name (required)")
		_ = c.MarkFlagRequired("label")
		_ = c.MarkFlagRequired("attr")
	}
	attrSetCmd.Flags().String("id-property", "id", "Property identifying the nodes")
	attrSetCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")
	attrExistsCmd.Flags().Bool("edge", false, "Look at relationships of the type instead of nodes")
	attrExistsCmd.Flags().Int("search-limit", 0, "Inspect at most this many candidates (0: all)")
	attrRangeCmd.Flags().String("where", "", "Filter on n, e.g. \"n.age > 30\"")
	attrRangeCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")

	for _, c := range []*cobra.Command{indexCmd, constraintCmd} {
		c.Flags().String("label", "", "Node label (required)")
		c.Flags().String("property", "", "Property name")
		_ = c.MarkFlagRequired("label")
	}
	_ = constraintCmd.MarkFlagRequired("property")
	constraintCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")

	countCmd.Flags().String("where", "", "Filter on n, e.g. \"n.age > 30\"")

	degreeCmd.Flags().String("rel", "", "Only count relationships of this type")
	degreeCmd.Flags().String("target", "", "Only count relationships to nodes of this label")
	degreeCmd.Flags().String("where", "", "Filter on n")
	degreeCmd.Flags().String("property", "degree", "Property receiving the count")
	degreeCmd.Flags().String("orientation", string(driver.Undirected), "undirected, in or out")

	dedupeCmd.Flags().String("source-label", "", "Restrict start nodes to this label")
	dedupeCmd.Flags().StringSlice("source-prop", nil, "Restrict start nodes to key=value (repeatable)")
	dedupeCmd.Flags().Int("batch-size", 0, "Relationships deleted per pass (default from config)")
}

// withSession opens a session, runs fn and closes the session.
func withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func labelAttr(cmd *cobra.Command) (string, string) {
	label, _ := cmd.Flags().GetString("label")
	attr, _ := cmd.Flags().GetString("attr")
	return label, attr
}

func runQuery(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("params")
	params, err := parseParams(raw)
	if err != nil {
		return err
	}
	write, _ := cmd.Flags().GetBool("write")
	output, _ := cmd.Flags().GetString("output")

	return withSession(cmd, func(s *session) error {
		run := s.db.Read
		if write {
			run = s.db.Write
		}
		rows, err := run(commandContext(cmd), args[0], params)
		if err != nil {
			return err
		}
		if rows == nil {
			rows = []driver.Row{}
		}
		return printResult(cmd.OutOrStdout(), rows, output)
	})
}

func runLabelsAdd(cmd *cobra.Command, args []string) error {
	ids, err := records.LoadFile(args[0])
	if err != nil {
		return err
	}
	match, _ := cmd.Flags().GetStringSlice("match")
	newLabels, _ := cmd.Flags().GetStringSlice("new")

	return withSession(cmd, func(s *session) error {
		size := s.cfg.Import.LabelChunkSize
		if cmd.Flags().Changed("chunk-size") {
			size, _ = cmd.Flags().GetInt("chunk-size")
		}
		if err := s.db.UpdateLabels(commandContext(cmd), ids, match, newLabels, size); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %d nodes\n", strings.Join(newLabels, ", "), len(ids))
		return nil
	})
}

func runAttrSet(cmd *cobra.Command, args []string) error {
	rows, err := records.LoadFile(args[0])
	if err != nil {
		return err
	}
	label, attr := labelAttr(cmd)
	idProperty, _ := cmd.Flags().GetString("id-property")
	output, _ := cmd.Flags().GetString("output")

	return withSession(cmd, func(s *session) error {
		result, err := s.db.SetNodeAttr(commandContext(cmd), rows, label, idProperty, attr)
		if err != nil {
			return err
		}
		if result == nil {
			result = []driver.Row{}
		}
		return printResult(cmd.OutOrStdout(), result, output)
	})
}

func runDegree(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	raw, _ := flags.GetString("orientation")
	orientation, err := driver.ParseOrientation(raw)
	if err != nil {
		return err
	}

	opts := &driver.DegreeOptions{Orientation: orientation}
	opts.RelLabel, _ = flags.GetString("rel")
	opts.TargetLabel, _ = flags.GetString("target")
	opts.Where, _ = flags.GetString("where")
	opts.SetProperty, _ = flags.GetString("property")

	return withSession(cmd, func(s *session) error {
		total, err := s.db.SetDegree(commandContext(cmd), args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s on %d %s nodes\n", opts.SetProperty, total, args[0])
		return nil
	})
}

func runDedupe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	pairs, _ := flags.GetStringSlice("source-prop")
	props, err := parseAssignments(pairs)
	if err != nil {
		return err
	}

	opts := &driver.DuplicateOptions{SourceProperties: props}
	opts.SourceLabel, _ = flags.GetString("source-label")

	return withSession(cmd, func(s *session) error {
		opts.BatchSize = s.cfg.Import.DuplicateBatchSize
		if flags.Changed("batch-size") {
			opts.BatchSize, _ = flags.GetInt("batch-size")
		}
		removed, err := s.db.WipeDuplicateRelationships(commandContext(cmd), args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d duplicate %s relationships\n", removed, args[0])
		return nil
	})
}
