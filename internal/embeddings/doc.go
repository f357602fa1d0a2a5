// Package embeddings implements the Embedding Service (spec.md §4.4):
// text -> fixed-dimension vector, deterministic for equal inputs within a
// process lifetime, via a pluggable provider (remote HTTP API, local
// FastEmbed/ONNX model, or a deterministic mock for tier=mock).
package embeddings
