package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/chunker"
	"github.com/datachat/backend/internal/metrics"
	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/pkg/logger"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum size")
	ErrEmptyDocument       = errors.New("document has no extractable text")
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Indexer is the vector-index surface the processor writes chunks through.
type Indexer interface {
	Add(ctx context.Context, texts []string, metas []milvus.ChunkMeta, ids []string) ([]string, error)
}

// Registry records ingested documents for listing and stats.
type Registry interface {
	InsertDocument(doc *models.Document) error
}

// Processor turns uploaded files into indexed chunks plus a document
// record. Validation failures happen before any side effect.
type Processor struct {
	registry     Registry
	index        Indexer
	chunker      *chunker.Chunker
	maxFileBytes int
}

func NewProcessor(registry Registry, index Indexer, ch *chunker.Chunker, maxFileBytes int) *Processor {
	if maxFileBytes <= 0 {
		maxFileBytes = 10 * 1024 * 1024
	}
	return &Processor{
		registry:     registry,
		index:        index,
		chunker:      ch,
		maxFileBytes: maxFileBytes,
	}
}

// Result describes one successfully ingested file.
type Result struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	ChunkCount int    `json:"chunk_count"`
}

// IngestFile validates, decodes, chunks and indexes one file.
func (p *Processor) IngestFile(ctx context.Context, filename string, data []byte, uploadedBy string) (*Result, error) {
	fileType, err := p.validate(filename, data)
	if err != nil {
		return nil, err
	}

	text, err := decode(fileType, data)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	metas := make([]milvus.ChunkMeta, len(chunks))
	for i := range chunks {
		metas[i] = milvus.ChunkMeta{
			Source:   filename,
			FileType: fileType,
			Index:    i,
			Total:    len(chunks),
		}
	}

	if _, err := p.index.Add(ctx, chunks, metas, nil); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", filename, err)
	}

	doc := &models.Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		FileType:   fileType,
		ChunkCount: len(chunks),
		UploadedBy: uploadedBy,
		UploadedAt: time.Now(),
	}
	if err := p.registry.InsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return &Result{
		DocumentID: doc.ID,
		Filename:   filename,
		FileType:   fileType,
		ChunkCount: len(chunks),
	}, nil
}

// BatchItem is the per-file outcome of a batch ingest.
type BatchItem struct {
	Filename string  `json:"filename"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// File is one upload in a batch.
type File struct {
	Name string
	Data []byte
}

// IngestBatch processes files independently; one failure does not stop the
// rest.
func (p *Processor) IngestBatch(ctx context.Context, files []File, uploadedBy string) []BatchItem {
	items := make([]BatchItem, 0, len(files))
	for _, f := range files {
		result, err := p.IngestFile(ctx, f.Name, f.Data, uploadedBy)
		if err != nil {
			logger.Error("Failed to ingest file",
				zap.String("filename", f.Name),
				zap.Error(err),
			)
			items = append(items, BatchItem{Filename: f.Name, Error: err.Error()})
			continue
		}
		items = append(items, BatchItem{Filename: f.Name, Result: result})
	}
	return items
}

func (p *Processor) validate(filename string, data []byte) (string, error) {
	if len(data) > p.maxFileBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, filename, len(data), p.maxFileBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md", ".html", ".htm":
		return strings.TrimPrefix(ext, "."), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}
}

func decode(fileType string, data []byte) (string, error) {
	switch fileType {
	case "txt", "md":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file is not valid UTF-8")
		}
		return string(data), nil
	case "html", "htm":
		return cleanHTML(string(data))
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFileType, fileType)
	}
}

func cleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}
