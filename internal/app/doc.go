// Package app contains the core application logic. It wires the document
// loader, the scene store, the engine and its external services together,
// decoupled from any specific entrypoint like a CLI.
package app
