package studygraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/config"
	"github.com/soundprediction/studygraph/pkg/types"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Run a retrieval query against a built corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)

	retrieveCmd.Flags().String("corpus", "", "Corpus namespace (default from config)")
	retrieveCmd.Flags().Int("top-k", 0, "Number of results")
	retrieveCmd.Flags().String("mode", "", "Backend mode (lexical_vector, graph_native, both)")
	retrieveCmd.Flags().Bool("window", false, "Expand results with neighboring chunks")
	retrieveCmd.Flags().Int("window-size", 0, "Chunks to pull on each side when expanding (0 = config default)")
	retrieveCmd.Flags().Bool("merged", false, "Merge results into per-module context blocks")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if corpus, _ := cmd.Flags().GetString("corpus"); corpus != "" {
		cfg.Graph.Namespace = corpus
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

	query := strings.Join(args, " ")
	topK, _ := cmd.Flags().GetInt("top-k")
	mode, _ := cmd.Flags().GetString("mode")
	window, _ := cmd.Flags().GetBool("window")
	windowSize, _ := cmd.Flags().GetInt("window-size")
	merged, _ := cmd.Flags().GetBool("merged")

	opts := &studygraph.RetrieveOptions{
		TopK:       topK,
		Mode:       types.BackendMode(mode),
		WindowSize: windowSize,
	}
	if window {
		opts.ExpandWindow = &window
	}

	if merged {
		blocks, err := client.RetrieveMerged(ctx, query, opts)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			fmt.Printf("=== module %s (%d chunks, %d direct hits)\n",
				block.ModuleID, block.ChunkCount, block.OriginalHitCount)
			fmt.Println(block.Text)
			fmt.Println()
		}
		return nil
	}

	result, err := client.Retrieve(ctx, query, opts)
	if err != nil {
		return err
	}
	if result.Expansion != nil && len(result.Expansion.ExpandedConcepts) > 0 {
		fmt.Printf("expanded with: %s\n\n", strings.Join(result.Expansion.ExpandedConcepts, ", "))
	}
	for i, chunk := range result.Chunks {
		marker := ""
		if chunk.IsWindowContext {
			marker = " (context)"
		}
		fmt.Printf("%2d. [%s] score=%.4f%s\n    %s\n", i+1, chunk.ChunkID, chunk.Score, marker, chunk.Text)
	}
	return nil
}
