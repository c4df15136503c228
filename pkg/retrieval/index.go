package retrieval

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/jordan/alivia/internal/observability"
	"github.com/jordan/alivia/internal/tracing"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const (
	// DefaultTopK is the number of passages returned per query
	DefaultTopK = 3

	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// Index is a Retriever backed by a SQLite document index.
type Index struct {
	db           *sql.DB
	docsDir      string
	topK         int
	chunkSize    int
	chunkOverlap int
	logger       zerolog.Logger
	embedder     EmbeddingProvider
	watcher      *Watcher

	mu      sync.RWMutex
	isDirty bool
	syncing bool
}

// Config holds index configuration
type Config struct {
	DocsDir      string
	DBPath       string
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Logger       zerolog.Logger
	Embedder     EmbeddingProvider // Optional, nil disables vector search
	Watch        bool
}

// NewIndex opens (or creates) the document index.
func NewIndex(cfg Config) (*Index, error) {
	observability.EnsureRegistered()

	if cfg.DocsDir == "" {
		return nil, errors.New("docs directory is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	idx := &Index{
		db:           db,
		docsDir:      cfg.DocsDir,
		topK:         cfg.TopK,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       cfg.Logger,
		embedder:     cfg.Embedder,
		isDirty:      true, // Start dirty to trigger the initial sync
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.Watch {
		watcher, err := NewWatcher(cfg.Logger, idx.MarkDirty)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create corpus watcher: %w", err)
		}
		if err := watcher.Watch(cfg.DocsDir); err != nil {
			watcher.Stop()
			db.Close()
			return nil, fmt.Errorf("failed to watch docs directory: %w", err)
		}
		idx.watcher = watcher
	}

	idx.logger.Info().Str("docs_dir", cfg.DocsDir).Msg("Document index opened")
	return idx, nil
}

func (idx *Index) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			content_hash TEXT NOT NULL,
			indexed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			content,
			tokenize='unicode61'
		);

		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`

	if _, err := idx.db.Exec(schema); err != nil {
		return err
	}

	if idx.embedder != nil {
		vectorSchema := fmt.Sprintf(`
			CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
				chunk_id TEXT PRIMARY KEY,
				embedding float[%d] distance_metric=cosine
			);
		`, idx.embedder.Dimension())

		if _, err := idx.db.Exec(vectorSchema); err != nil {
			return fmt.Errorf("failed to create vector table: %w", err)
		}
	}

	return nil
}

// MarkDirty flags the index for re-sync on the next retrieval.
func (idx *Index) MarkDirty() {
	idx.mu.Lock()
	idx.isDirty = true
	idx.mu.Unlock()
}

// Close stops the watcher and closes the database.
func (idx *Index) Close() error {
	if idx.watcher != nil {
		idx.watcher.Stop()
	}
	return idx.db.Close()
}

// Retrieve returns the top-K most relevant passages for the query.
func (idx *Index) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"retrieval.retrieve",
		attribute.Int("top_k", idx.topK),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, idx.logger)
	start := time.Now()
	defer func() {
		observability.RecordRetrieval(time.Since(start))
	}()

	if strings.TrimSpace(query) == "" {
		return []Passage{}, nil
	}

	idx.mu.RLock()
	dirty := idx.isDirty
	idx.mu.RUnlock()

	if dirty {
		if err := idx.Sync(ctx); err != nil {
			logger.Warn().Err(err).Msg("Sync failed before retrieval")
		}
	}

	// Run the vector and keyword legs in parallel
	var vectorResults []vectorResult
	var keywordResults []keywordResult
	var vectorErr, keywordErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if idx.embedder != nil {
			vectorResults, vectorErr = idx.vectorSearch(ctx, query, idx.topK*10)
		}
	}()

	go func() {
		defer wg.Done()
		keywordResults, keywordErr = idx.keywordSearch(query, idx.topK*10)
	}()

	wg.Wait()

	if vectorErr != nil {
		logger.Warn().Err(vectorErr).Msg("Vector search failed, using keyword only")
	}
	if keywordErr != nil {
		logger.Warn().Err(keywordErr).Msg("Keyword search failed, using vector only")
	}
	if vectorErr != nil && keywordErr != nil {
		span.RecordError(vectorErr)
		span.SetStatus(codes.Error, "both search legs failed")
		return nil, fmt.Errorf("retrieval failed: %w", errors.Join(vectorErr, keywordErr))
	}

	passages := idx.mergeResults(vectorResults, keywordResults)
	if len(passages) > idx.topK {
		passages = passages[:idx.topK]
	}

	logger.Debug().
		Int("passages", len(passages)).
		Msg("Retrieval completed")

	return passages, nil
}

type vectorResult struct {
	chunkID    string
	similarity float64
}

type keywordResult struct {
	chunkID   string
	bm25Score float64
}

func (idx *Index) vectorSearch(ctx context.Context, query string, limit int) ([]vectorResult, error) {
	embedding, err := idx.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT
			chunk_id,
			vec_distance_cosine(embedding, ?) as distance
		FROM embeddings
		ORDER BY distance ASC
		LIMIT ?
	`, string(embeddingJSON), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []vectorResult
	for rows.Next() {
		var chunkID string
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, err
		}

		results = append(results, vectorResult{
			chunkID:    chunkID,
			similarity: 1.0 - distance,
		})
	}

	return results, rows.Err()
}

func (idx *Index) keywordSearch(query string, limit int) ([]keywordResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := idx.db.Query(`
		SELECT chunk_id, bm25(chunks_fts) as score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []keywordResult
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, err
		}

		// BM25 scores are negative, convert to positive
		results = append(results, keywordResult{
			chunkID:   chunkID,
			bm25Score: -score,
		})
	}

	return results, rows.Err()
}

// ftsQuery turns raw user text into a safe FTS5 MATCH expression: quoted
// tokens joined with OR. Punctuation-only input yields an empty expression.
func ftsQuery(query string) string {
	var tokens []string
	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, `"'¿?¡!.,;:()`)
		if token == "" {
			continue
		}
		tokens = append(tokens, `"`+strings.ReplaceAll(token, `"`, ``)+`"`)
	}
	return strings.Join(tokens, " OR ")
}

func (idx *Index) mergeResults(vectorResults []vectorResult, keywordResults []keywordResult) []Passage {
	vectorMap := make(map[string]float64)
	keywordMap := make(map[string]float64)

	var maxKeyword float64
	for _, r := range vectorResults {
		vectorMap[r.chunkID] = r.similarity
	}
	for _, r := range keywordResults {
		keywordMap[r.chunkID] = r.bm25Score
		if r.bm25Score > maxKeyword {
			maxKeyword = r.bm25Score
		}
	}

	chunkIDs := make(map[string]bool)
	for id := range vectorMap {
		chunkIDs[id] = true
	}
	for id := range keywordMap {
		chunkIDs[id] = true
	}

	type scored struct {
		chunkID string
		score   float64
	}

	var ranked []scored
	for chunkID := range chunkIDs {
		var normVector, normKeyword float64

		// Map cosine similarity [-1, 1] to [0, 1]
		if similarity, ok := vectorMap[chunkID]; ok {
			normVector = (similarity + 1) / 2
		}
		if bm25, ok := keywordMap[chunkID]; ok && maxKeyword > 0 {
			normKeyword = bm25 / maxKeyword
		}

		ranked = append(ranked, scored{
			chunkID: chunkID,
			score:   normVector*vectorWeight + normKeyword*keywordWeight,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	passages := make([]Passage, 0, len(ranked))
	for _, s := range ranked {
		var content, docPath string
		err := idx.db.QueryRow(`
			SELECT c.content, d.path
			FROM chunks c
			JOIN documents d ON c.document_id = d.id
			WHERE c.id = ?
		`, s.chunkID).Scan(&content, &docPath)
		if err != nil {
			idx.logger.Warn().Err(err).Str("chunk_id", s.chunkID).Msg("Failed to fetch chunk")
			continue
		}

		passages = append(passages, Passage{
			Content: content,
			Source:  filepath.Base(docPath),
			Score:   s.score,
		})
	}

	return passages
}

// Sync walks the docs directory and (re)indexes added, changed, and removed
// documents.
func (idx *Index) Sync(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "retrieval.sync")
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, idx.logger)

	idx.mu.Lock()
	if idx.syncing {
		idx.mu.Unlock()
		return errors.New("sync already in progress")
	}
	idx.syncing = true
	idx.mu.Unlock()

	defer func() {
		idx.mu.Lock()
		idx.syncing = false
		idx.isDirty = false
		idx.mu.Unlock()
	}()

	logger.Info().Msg("Starting corpus sync")

	seen := make(map[string]bool)
	err := filepath.WalkDir(idx.docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCorpusFile(path) {
			return nil
		}

		seen[path] = true
		return idx.syncDocument(ctx, path)
	})
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("docs_dir", idx.docsDir).Msg("Docs directory missing, corpus is empty")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to walk docs directory: %w", err)
		}
	}

	if err := idx.removeVanished(seen); err != nil {
		return err
	}

	count, err := idx.chunkCount()
	if err == nil {
		observability.SetIndexedChunks(count)
	}

	logger.Info().Int("chunks", count).Msg("Corpus sync completed")
	return nil
}

// syncDocument indexes one document if its content changed since last sync.
func (idx *Index) syncDocument(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	hash := contentHash(data)

	var docID int64
	var existingHash string
	err = idx.db.QueryRow(`SELECT id, content_hash FROM documents WHERE path = ?`, path).
		Scan(&docID, &existingHash)
	switch {
	case err == sql.ErrNoRows:
		res, err := idx.db.Exec(
			`INSERT INTO documents (path, content_hash, indexed_at) VALUES (?, ?, ?)`,
			path, hash, time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		docID, _ = res.LastInsertId()
	case err != nil:
		return fmt.Errorf("failed to look up document: %w", err)
	case existingHash == hash:
		return nil // unchanged
	default:
		if _, err := idx.db.Exec(
			`UPDATE documents SET content_hash = ?, indexed_at = ? WHERE id = ?`,
			hash, time.Now().Unix(), docID,
		); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		if err := idx.deleteChunks(docID); err != nil {
			return err
		}
	}

	chunks := ChunkText(string(data), idx.chunkSize, idx.chunkOverlap)
	for seq, chunk := range chunks {
		chunkID := uuid.New().String()

		if _, err := idx.db.Exec(
			`INSERT INTO chunks (id, document_id, seq, content) VALUES (?, ?, ?, ?)`,
			chunkID, docID, seq, chunk,
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		if _, err := idx.db.Exec(
			`INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)`,
			chunkID, chunk,
		); err != nil {
			return fmt.Errorf("failed to insert chunk into FTS: %w", err)
		}

		if idx.embedder != nil {
			if err := idx.embedChunk(ctx, chunkID, chunk); err != nil {
				// Keyword search still works for this chunk
				idx.logger.Warn().Err(err).Str("chunk_id", chunkID).Msg("Failed to embed chunk")
			}
		}
	}

	idx.logger.Debug().
		Str("path", filepath.Base(path)).
		Int("chunks", len(chunks)).
		Msg("Document indexed")

	return nil
}

// embedChunk stores the chunk embedding, consulting the cache first.
func (idx *Index) embedChunk(ctx context.Context, chunkID, content string) error {
	hash := contentHash([]byte(content))

	var embeddingJSON string
	err := idx.db.QueryRow(
		`SELECT embedding FROM embedding_cache WHERE content_hash = ?`, hash,
	).Scan(&embeddingJSON)
	if err == sql.ErrNoRows {
		embedding, err := idx.embedder.GenerateEmbedding(ctx, content)
		if err != nil {
			return err
		}
		data, err := json.Marshal(embedding)
		if err != nil {
			return err
		}
		embeddingJSON = string(data)

		if _, err := idx.db.Exec(
			`INSERT OR REPLACE INTO embedding_cache (content_hash, embedding, created_at) VALUES (?, ?, ?)`,
			hash, embeddingJSON, time.Now().Unix(),
		); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = idx.db.Exec(
		`INSERT INTO embeddings (chunk_id, embedding) VALUES (?, ?)`,
		chunkID, embeddingJSON,
	)
	return err
}

// deleteChunks removes all chunks, FTS rows, and embeddings for a document.
func (idx *Index) deleteChunks(docID int64) error {
	rows, err := idx.db.Query(`SELECT id FROM chunks WHERE document_id = ?`, docID)
	if err != nil {
		return err
	}
	var chunkIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, id)
	}
	rows.Close()

	for _, id := range chunkIDs {
		if _, err := idx.db.Exec(`DELETE FROM chunks_fts WHERE chunk_id = ?`, id); err != nil {
			return err
		}
		if idx.embedder != nil {
			if _, err := idx.db.Exec(`DELETE FROM embeddings WHERE chunk_id = ?`, id); err != nil {
				return err
			}
		}
	}

	_, err = idx.db.Exec(`DELETE FROM chunks WHERE document_id = ?`, docID)
	return err
}

// removeVanished drops documents no longer present on disk.
func (idx *Index) removeVanished(seen map[string]bool) error {
	rows, err := idx.db.Query(`SELECT id, path FROM documents`)
	if err != nil {
		return err
	}

	type doc struct {
		id   int64
		path string
	}
	var vanished []doc
	for rows.Next() {
		var d doc
		if err := rows.Scan(&d.id, &d.path); err != nil {
			rows.Close()
			return err
		}
		if !seen[d.path] {
			vanished = append(vanished, d)
		}
	}
	rows.Close()

	for _, d := range vanished {
		if err := idx.deleteChunks(d.id); err != nil {
			return err
		}
		if _, err := idx.db.Exec(`DELETE FROM documents WHERE id = ?`, d.id); err != nil {
			return err
		}
		idx.logger.Debug().Str("path", filepath.Base(d.path)).Msg("Vanished document removed")
	}

	return nil
}

func (idx *Index) chunkCount() (int, error) {
	var count int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
