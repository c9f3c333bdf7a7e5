package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	cache "github.com/datachat/backend/internal/cache/redis"
	"github.com/datachat/backend/internal/embedding"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/utils"
)

// ChunkMeta is the per-chunk metadata persisted next to each embedding.
type ChunkMeta struct {
	Source   string
	FileType string
	Index    int
	Total    int
}

// Candidate is one ranked similarity-search hit. Distance is L2; lower is
// more similar. Results are ordered by ascending distance.
type Candidate struct {
	ID       string
	Text     string
	Distance float32
	Source   string
	FileType string
	Index    int
}

// Client wraps the embedding service and a Milvus collection into the
// add/search/count/reset surface the engine retrieves through.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	embedder       embedding.Service
	cache          *cache.Client
}

func NewClient(endpoint, collectionName string, vectorDim int, embedder embedding.Service, embCache *cache.Client) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		embedder:       embedder,
		cache:          embCache,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "source",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "file_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "total_chunks",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Add embeds each text and persists (id, embedding, text, metadata) tuples.
// When ids is nil, content-derived ids are generated from source+text. The
// assigned ids are returned in input order.
func (m *Client) Add(ctx context.Context, texts []string, metas []ChunkMeta, ids []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(metas) != len(texts) {
		return nil, fmt.Errorf("metadata count mismatch: got %d, expected %d", len(metas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return nil, fmt.Errorf("id count mismatch: got %d, expected %d", len(ids), len(texts))
	}

	if ids == nil {
		ids = make([]string, len(texts))
		for i, text := range texts {
			ids[i] = utils.ChunkID(metas[i].Source, text)
		}
	}

	embeddings, err := m.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	sources := make([]string, len(texts))
	fileTypes := make([]string, len(texts))
	indexes := make([]int64, len(texts))
	totals := make([]int64, len(texts))
	for i, meta := range metas {
		sources[i] = meta.Source
		fileTypes[i] = meta.FileType
		indexes[i] = int64(meta.Index)
		totals[i] = int64(meta.Total)
	}

	_, err = m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("file_type", fileTypes),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnInt64("total_chunks", totals),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return nil, fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks indexed", zap.Int("count", len(texts)))

	return ids, nil
}

// Search embeds the query once and returns up to topK nearest chunks by L2
// distance, ascending. Fewer than topK results is not an error. The optional
// filter narrows by metadata field (source, file_type).
func (m *Client) Search(ctx context.Context, query string, topK int, filter map[string]string) ([]Candidate, error) {
	queryEmbedding, err := m.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	expr := buildFilterExpr(filter)

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "source", "file_type", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	candidates := make([]Candidate, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source")
		typeCol := sr.Fields.GetColumn("file_type")
		indexCol := sr.Fields.GetColumn("chunk_index")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.GetAsString(i)
			text, _ := textCol.GetAsString(i)
			source, _ := sourceCol.GetAsString(i)
			fileType, _ := typeCol.GetAsString(i)
			chunkIndex, _ := indexCol.GetAsInt64(i)

			candidates = append(candidates, Candidate{
				ID:       id,
				Text:     text,
				Distance: sr.Scores[i],
				Source:   source,
				FileType: fileType,
				Index:    int(chunkIndex),
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("top_k", topK),
		zap.Int("results", len(candidates)),
	)

	return candidates, nil
}

func (m *Client) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count: %w", err)
	}

	return count, nil
}

// Reset drops and recreates the collection. Destructive and unrecoverable;
// Count reports 0 afterwards.
func (m *Client) Reset(ctx context.Context) error {
	logger.Warn("Resetting vector collection", zap.String("collection", m.collectionName))

	if err := m.client.DropCollection(ctx, m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	if err := m.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}

	logger.Info("Vector collection reset complete")
	return nil
}

func (m *Client) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	expr := fmt.Sprintf("chunk_id in [%s]", strings.Join(quoted, ", "))

	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	logger.Info("Chunks deleted", zap.Int("count", len(ids)))
	return nil
}

func (m *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	textHash := utils.HashString(text)
	if vector, ok := m.cache.GetEmbedding(ctx, textHash); ok {
		return vector, nil
	}

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	m.cache.SetEmbedding(ctx, textHash, vector)
	return vector, nil
}

func (m *Client) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	hashes := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		hashes[i] = utils.HashString(text)
		if vector, ok := m.cache.GetEmbedding(ctx, hashes[i]); ok {
			embeddings[i] = vector
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := m.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(missing))
		}
		for j, vector := range vectors {
			i := missingIdx[j]
			embeddings[i] = vector
			m.cache.SetEmbedding(ctx, hashes[i], vector)
		}
	}

	return embeddings, nil
}

func buildFilterExpr(filter map[string]string) string {
	var parts []string
	if source, ok := filter["source"]; ok && source != "" {
		parts = append(parts, fmt.Sprintf(`source == %q`, source))
	}
	if fileType, ok := filter["file_type"]; ok && fileType != "" {
		parts = append(parts, fmt.Sprintf(`file_type == %q`, fileType))
	}
	return strings.Join(parts, " && ")
}
