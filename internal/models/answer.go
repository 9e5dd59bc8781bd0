package models

// Passage is a retrieved chunk with its fused relevance score, as used for answer synthesis.
type Passage struct {
	ChunkID       string  `json:"chunk_id"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Question  string     `json:"question"`
	Text      string     `json:"answer"`
	Passages  []*Passage `json:"passages,omitempty"`
	QueryTime int64      `json:"query_time_ms"`
}
