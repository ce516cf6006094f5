package model

// Chunk is a bounded piece of one document's normalized text, in production
// order. It carries no identity until the ingest pipeline assigns one.
type Chunk struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// RetrievedChunk is a transient per-query result. Similarity is the graded
// cosine score on the vector path, or a flat default on the keyword path.
type RetrievedChunk struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// ChunkRecord is the persisted form of a chunk, one row per embedding.
type ChunkRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
	Mtime      int64     `json:"mtime"`
}
