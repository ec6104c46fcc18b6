package minigraph

import (
	"fmt"
	"time"

	mg "github.com/soundprediction/minigraph"
	"github.com/soundprediction/minigraph/pkg/checkpoint"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes <file>",
	Short: "Merge node records from a JSON, JSONL or YAML file",
	Long: `Merge node records into a label, keyed on an id property.

Each record becomes the property map of one node. With --attributes only
the id and the listed keys are written. Imports are chunked; with
checkpoints enabled an interrupted import resumes at the first chunk that
did not commit.`,
	Args: cobra.ExactArgs(1),
	RunE: runNodes,
}

var edgesCmd = &cobra.Command{
	Use:   "edges <file>",
	Short: "Merge relationship records from a JSON, JSONL or YAML file",
	Long: `Merge relationships between existing nodes. Each record carries the
endpoint ids under "source" and "target"; --attributes are copied onto the
relationship. --on-duplicate selects what happens when the relationship
already exists: "update" overwrites the attributes, "increment" bumps
r.weight.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdges,
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Inspect or clean import checkpoints",
	Args:  cobra.NoArgs,
	RunE:  runCheckpoints,
}

func init() {
	rootCmd.AddCommand(nodesCmd, edgesCmd, checkpointsCmd)

	nodesCmd.Flags().String("label", "", "Node label (required)")
	nodesCmd.Flags().String("id-property", "id", "Property the nodes are merged on")
	nodesCmd.Flags().String("id-key", "", "Record key holding the id (default: the id property)")
	nodesCmd.Flags().StringSlice("attributes", nil, "Record keys to write besides the id (default: all)")
	nodesCmd.Flags().Bool("update", false, "Also overwrite properties of existing nodes")
	nodesCmd.Flags().Int("chunk-size", 0, "Records per statement (default from config)")
	nodesCmd.Flags().String("query", "", "Custom statement run per chunk with $node_list")
	nodesCmd.Flags().Bool("no-checkpoint", false, "Do not record or resume progress")
	_ = nodesCmd.MarkFlagRequired("label")

	edgesCmd.Flags().String("source-label", "", "Label of the start nodes (required)")
	edgesCmd.Flags().String("edge-label", "", "Relationship type (required)")
	edgesCmd.Flags().String("target-label", "", "Label of the end nodes (required)")
	edgesCmd.Flags().String("source-id", "id", "Id property of the start nodes")
	edgesCmd.Flags().String("target-id", "id", "Id property of the end nodes")
	edgesCmd.Flags().StringSlice("attributes", nil, "Record keys copied onto the relationship")
	edgesCmd.Flags().String("on-duplicate", string(driver.OnDuplicateUpdate), "update or increment")
	edgesCmd.Flags().Int("chunk-size", 0, "Records per statement (default from config)")
	edgesCmd.Flags().String("query", "", "Custom statement run per chunk with $edge_list")
	edgesCmd.Flags().Bool("no-checkpoint", false, "Do not record or resume progress")
	_ = edgesCmd.MarkFlagRequired("source-label")
	_ = edgesCmd.MarkFlagRequired("edge-label")
	_ = edgesCmd.MarkFlagRequired("target-label")

	checkpointsCmd.Flags().Duration("clean", 0, "Remove checkpoints not updated for this long (e.g. 168h)")
	checkpointsCmd.Flags().StringP("output", "o", "json", "Output format (json, yaml)")
}

// openCheckpoints opens the checkpoint store unless disabled.
func openCheckpoints(cmd *cobra.Command, s *session) (*checkpoint.CheckpointManager, error) {
	if skip, _ := cmd.Flags().GetBool("no-checkpoint"); skip || !s.cfg.Checkpoint.Enabled {
		return nil, nil
	}
	cm, err := checkpoint.NewCheckpointManager(s.cfg.Checkpoint.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoints: %w", err)
	}
	return cm, nil
}

func runNodes(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	cm, err := openCheckpoints(cmd, s)
	if err != nil {
		return err
	}
	if cm != nil {
		defer cm.Close()
	}

	flags := cmd.Flags()
	label, _ := flags.GetString("label")
	idProperty, _ := flags.GetString("id-property")

	opts := driver.NodeWriteOptions{ChunkSize: s.cfg.Import.NodeChunkSize}
	opts.IDKey, _ = flags.GetString("id-key")
	opts.Update, _ = flags.GetBool("update")
	opts.CustomQuery, _ = flags.GetString("query")
	if flags.Changed("attributes") {
		opts.Attributes, _ = flags.GetStringSlice("attributes")
		if opts.Attributes == nil {
			opts.Attributes = []string{}
		}
	}
	if flags.Changed("chunk-size") {
		opts.ChunkSize, _ = flags.GetInt("chunk-size")
	}

	report, err := newImporter(s, cm).ImportNodes(commandContext(cmd), args[0], label, idProperty, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes into %s in %d chunks (%d resumed)\n", report.Records, label, report.Chunks, report.Skipped)
	return nil
}

func newImporter(s *session, cm *checkpoint.CheckpointManager) *mg.Importer {
	return mg.NewImporter(s.db, cm, s.logger,
		mg.WithResumeLimits(s.cfg.Checkpoint.MaxAttempts, s.cfg.Checkpoint.MaxAge))
}

func runEdges(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	cm, err := openCheckpoints(cmd, s)
	if err != nil {
		return err
	}
	if cm != nil {
		defer cm.Close()
	}

	flags := cmd.Flags()
	sourceLabel, _ := flags.GetString("source-label")
	edgeLabel, _ := flags.GetString("edge-label")
	targetLabel, _ := flags.GetString("target-label")

	opts := driver.EdgeWriteOptions{ChunkSize: s.cfg.Import.EdgeChunkSize}
	opts.SourceIDProperty, _ = flags.GetString("source-id")
	opts.TargetIDProperty, _ = flags.GetString("target-id")
	opts.Attributes, _ = flags.GetStringSlice("attributes")
	opts.CustomQuery, _ = flags.GetString("query")
	onDuplicate, _ := flags.GetString("on-duplicate")
	opts.OnDuplicate = driver.OnDuplicate(onDuplicate)
	if flags.Changed("chunk-size") {
		opts.ChunkSize, _ = flags.GetInt("chunk-size")
	}

	report, err := newImporter(s, cm).ImportEdges(commandContext(cmd), args[0], sourceLabel, edgeLabel, targetLabel, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s relationships in %d chunks (%d resumed)\n", report.Records, edgeLabel, report.Chunks, report.Skipped)
	return nil
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cm, err := checkpoint.NewCheckpointManager(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoints: %w", err)
	}
	defer cm.Close()

	ctx := commandContext(cmd)
	if maxAge, _ := cmd.Flags().GetDuration("clean"); maxAge > 0 {
		removed, err := cm.CleanOld(ctx, maxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoints older than %s\n", removed, maxAge.Round(time.Second))
		return nil
	}

	checkpoints, err := cm.List(ctx)
	if err != nil {
		return err
	}
	progress := make([]map[string]any, 0, len(checkpoints))
	for _, cp := range checkpoints {
		progress = append(progress, map[string]any{
			"job_id":     cp.JobID,
			"source":     cp.Source,
			"progress":   cp.GetProgress(),
			"attempts":   cp.AttemptCount,
			"last_error": cp.LastError,
			"updated_at": cp.LastUpdatedAt,
		})
	}
	output, _ := cmd.Flags().GetString("output")
	return printResult(cmd.OutOrStdout(), progress, output)
}
