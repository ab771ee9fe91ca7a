// Package memory provides a semantic memory store for agent tools.
//
// The store persists short free-text notes alongside vector embeddings and
// retrieves the notes most similar to a query by brute-force inner-product
// ranking. Records are never deleted; an update replaces text, embedding and
// timestamp together.
//
// Architecture:
//   - Store: record backend (MongoDB, SQLite/PostgreSQL, Redis, chromem-go)
//   - Embedder: text-to-vector conversion (mock, OpenAI, local ONNX model)
//   - Manager: the Store/Retrieve/Update operations tool code calls
//
// Every operation failure is returned as an error wrapping one of
// ErrStorage, ErrEmbedding or ErrInvalidArgument, so a calling agent loop can
// report it and continue. ErrConnection is only produced while a backend is
// being constructed.
package memory
