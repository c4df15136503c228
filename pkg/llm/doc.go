// Package llm abstracts the language-model backends behind a small provider
// interface with streaming and non-streaming completion.
//
// Streams are pull-based iterators: callers consume fragments with Next and
// may abandon the stream at any point via Close, which also stops the
// underlying HTTP response.
package llm
