package types

// RetrievedChunk is a chunk returned by a search, with its fused relevance score.
type RetrievedChunk struct {
	ChunkID  string   `json:"chunk_id"`
	DocID    string   `json:"doc_id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Validate checks if the retrieved chunk is valid
func (rc *RetrievedChunk) Validate() error {
	if rc.ChunkID == "" {
		return ErrEmptyChunkID
	}
	if rc.Score < 0 || rc.Score > 1 {
		return ErrInvalidScore
	}
	return nil
}
