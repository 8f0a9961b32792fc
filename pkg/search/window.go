package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/studygraph/pkg/driver"
	"github.com/soundprediction/studygraph/pkg/types"
)

const defaultWindowSize = 1

// blockSeparator joins chunk texts inside a merged context block.
const blockSeparator = "\n\n"

// WindowExpander widens retrieval hits with their sequential chunk
// neighbors, so a hit in the middle of an explanation carries its
// surrounding sentences into the answer context.
type WindowExpander struct {
	traverser driver.GraphTraverser
	window    int
}

// NewWindowExpander returns an expander that pulls window chunks
// before and after each hit. A non-positive window means one chunk on
// each side.
func NewWindowExpander(traverser driver.GraphTraverser, window int) *WindowExpander {
	if window <= 0 {
		window = defaultWindowSize
	}
	return &WindowExpander{traverser: traverser, window: window}
}

// Expand returns the seed hits plus their neighboring chunks, sorted
// by module and chunk index. A chunk retrieved directly keeps its
// score and direct status even when another seed's window also covers
// it. Window lookups that fail leave their seed unexpanded. A
// non-positive window falls back to the configured size.
func (w *WindowExpander) Expand(ctx context.Context, seeds []*types.ScoredChunk, window int) []*types.ScoredChunk {
	if window <= 0 {
		window = w.window
	}
	byID := make(map[string]*types.ScoredChunk, len(seeds))
	for _, seed := range seeds {
		if seed == nil {
			continue
		}
		if existing, ok := byID[seed.ChunkID]; !ok || existing.IsWindowContext {
			copied := *seed
			copied.IsWindowContext = false
			byID[seed.ChunkID] = &copied
		}
	}

	for _, seed := range seeds {
		if seed == nil {
			continue
		}
		neighbors, err := w.traverser.GetSequentialWindow(ctx, seed.ChunkID, window, window)
		if err != nil {
			slog.Warn("window expansion failed", "chunk_id", seed.ChunkID, "error", err)
			continue
		}
		for _, node := range neighbors {
			if node == nil {
				continue
			}
			if _, ok := byID[node.ChunkID]; ok {
				continue
			}
			byID[node.ChunkID] = &types.ScoredChunk{
				ChunkID:         node.ChunkID,
				Text:            node.Text,
				ModuleID:        node.ModuleID,
				Section:         node.Section,
				ChunkIndex:      node.ChunkIndex,
				IsWindowContext: true,
				OriginalScore:   seed.Score,
				PrevChunkID:     node.PrevChunkID,
				NextChunkID:     node.NextChunkID,
			}
		}
	}

	expanded := make([]*types.ScoredChunk, 0, len(byID))
	for _, chunk := range byID {
		expanded = append(expanded, chunk)
	}
	sort.Slice(expanded, func(i, j int) bool {
		if expanded[i].ModuleID != expanded[j].ModuleID {
			return expanded[i].ModuleID < expanded[j].ModuleID
		}
		return expanded[i].ChunkIndex < expanded[j].ChunkIndex
	})
	return expanded
}

// ExpandMerged expands the seeds and merges each module's chunks into
// one contiguous text block.
func (w *WindowExpander) ExpandMerged(ctx context.Context, seeds []*types.ScoredChunk, window int) []types.ContextBlock {
	expanded := w.Expand(ctx, seeds, window)

	var blocks []types.ContextBlock
	moduleIndex := make(map[string]int)
	for _, chunk := range expanded {
		idx, ok := moduleIndex[chunk.ModuleID]
		if !ok {
			idx = len(blocks)
			moduleIndex[chunk.ModuleID] = idx
			blocks = append(blocks, types.ContextBlock{
				ModuleID: chunk.ModuleID,
				Section:  chunk.Section,
			})
		}
		block := &blocks[idx]
		block.ChunkIDs = append(block.ChunkIDs, chunk.ChunkID)
		block.ChunkCount++
		if !chunk.IsWindowContext {
			block.OriginalHitCount++
		}
	}

	texts := make(map[string][]string, len(blocks))
	for _, chunk := range expanded {
		texts[chunk.ModuleID] = append(texts[chunk.ModuleID], chunk.Text)
	}
	for i := range blocks {
		blocks[i].Text = strings.Join(texts[blocks[i].ModuleID], blockSeparator)
	}
	return blocks
}
