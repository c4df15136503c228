// Package engine orchestrates conversation turns: it decides between a
// greeting short-circuit and a full retrieval-grounded streaming answer,
// maintains the per-session memory window, and produces session summaries.
package engine
