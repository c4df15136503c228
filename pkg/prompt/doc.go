// Package prompt holds the persona configuration, the prompt composer, and
// the greeting name detector.
//
// Personas are data, not code: greeting, system, and summary templates live
// in a Persona value that can be loaded from a JSON file and validated
// against a schema, so the conversational voice can change without touching
// the engine.
package prompt
