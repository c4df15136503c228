// Package retrieval indexes a text document corpus into SQLite and answers
// top-K passage queries for grounding chat responses.
//
// Search is hybrid: vector similarity over sqlite-vec embeddings combined
// with FTS5 keyword matching. Either leg may fail or be absent (no embedding
// provider configured); results degrade gracefully to the surviving leg.
// A filesystem watcher marks the index dirty when corpus files change, and
// the next retrieval triggers a re-sync.
package retrieval
