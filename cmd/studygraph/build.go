package studygraph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/config"
	"github.com/soundprediction/studygraph/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build <corpus.jsonl>",
	Short: "Build the concept graph and search index from a corpus file",
	Long: `Build ingests a JSONL corpus file: one record per line with
module_id, module_title, section, text, and key_terms fields.

It constructs the concept graph (concepts, PREREQ and RELATED edges),
embeds every chunk, persists everything to the graph store, and
populates the lexical/vector index.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("corpus", "", "Corpus namespace (default from config)")
	buildCmd.Flags().Bool("skip-index", false, "Build only the concept graph, skip the search index")
	buildCmd.Flags().Int("embed-batch-size", 0, "Chunk texts per embedding call")
	buildCmd.Flags().String("checkpoint-dir", "", "Directory for build checkpoints")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if corpus, _ := cmd.Flags().GetString("corpus"); corpus != "" {
		cfg.Graph.Namespace = corpus
	}
	if dir, _ := cmd.Flags().GetString("checkpoint-dir"); dir != "" {
		cfg.Graph.CheckpointDir = dir
	}

	if sink := setupLogging(cfg); sink != nil {
		defer sink.Flush()
	}

	ctx := context.WithValue(cmd.Context(), types.ContextKeyRequestSource, "cli")
	ctx = context.WithValue(ctx, types.ContextKeyCorpusID, cfg.Graph.Namespace)

	client, err := studygraph.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer client.Close(ctx)

	skipIndex, _ := cmd.Flags().GetBool("skip-index")
	batchSize, _ := cmd.Flags().GetInt("embed-batch-size")

	result, err := client.BuildCorpus(ctx, args[0], &studygraph.BuildOptions{
		SkipIndex:      skipIndex,
		EmbedBatchSize: batchSize,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("Corpus %q built:\n", cfg.Graph.Namespace)
	fmt.Printf("  modules:       %d\n", result.Modules)
	fmt.Printf("  concepts:      %d\n", result.Concepts)
	fmt.Printf("  chunks:        %d\n", result.Chunks)
	fmt.Printf("  relationships: %d\n", result.Relationships)
	fmt.Printf("  indexed docs:  %d\n", result.IndexedDocs)
	return nil
}
