package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/graphgen-api/internal/platform/logger"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default split parameters, in characters.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 100
)

// Chunk is a unit of source text the later steps work on.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (g *GraphGen) insert(ctx context.Context, cfg Config, workDir string) ([]Chunk, error) {
	log := logger.FromContext(ctx)

	inputFile := cfg.Section("read").String("input_file", "")
	docs, err := readDocuments(inputFile)
	if err != nil {
		return nil, err
	}

	split := cfg.Section("split")
	size := split.Int("chunk_size", DefaultChunkSize)
	overlap := split.Int("chunk_overlap", DefaultChunkOverlap)
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, Errorf(CauseConfig, "invalid split parameters: chunk_size=%d chunk_overlap=%d", size, overlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)

	seen := make(map[string]bool)
	var chunks []Chunk
	for _, doc := range docs {
		parts, err := splitter.SplitText(doc)
		if err != nil {
			return nil, NewError(CausePipeline, fmt.Errorf("failed to split document: %w", err))
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id := chunkID(part)
			if seen[id] {
				continue
			}
			seen[id] = true
			chunks = append(chunks, Chunk{ID: id, Content: part})
		}
	}
	if len(chunks) == 0 {
		return nil, Errorf(CausePipeline, "input %s produced no chunks", inputFile)
	}

	if err := writeJSONLines(filepath.Join(workDir, ChunksFileName), chunks); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "insert step finished",
		"input_file", inputFile,
		"documents", len(docs),
		"chunks", len(chunks))
	return chunks, nil
}

func chunkID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "chunk-" + hex.EncodeToString(sum[:8])
}

// readDocuments loads the documents in path. Plain text and markdown files are
// one document; .json holds an array and .jsonl one item per line, where each
// item is a string or an object with a "content" field.
func readDocuments(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Errorf(CauseConfig, "input file %s does not exist", path)
		}
		return nil, NewError(CauseFilesystem, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", "":
		return []string{string(data)}, nil
	case ".json":
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, Errorf(CauseConfig, "input file %s is not a JSON array: %w", path, err)
		}
		return documentsFrom(items, path)
	case ".jsonl":
		var items []json.RawMessage
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			items = append(items, append(json.RawMessage(nil), line...))
		}
		if err := scanner.Err(); err != nil {
			return nil, NewError(CauseFilesystem, err)
		}
		return documentsFrom(items, path)
	default:
		return nil, Errorf(CauseConfig, "unsupported input file type %q", filepath.Ext(path))
	}
}

func documentsFrom(items []json.RawMessage, path string) ([]string, error) {
	docs := make([]string, 0, len(items))
	for i, raw := range items {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			docs = append(docs, text)
			continue
		}
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || obj.Content == "" {
			return nil, Errorf(CauseConfig, "%s item %d has no content", path, i)
		}
		docs = append(docs, obj.Content)
	}
	return docs, nil
}
