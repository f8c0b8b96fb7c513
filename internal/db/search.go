package db

// TagFilter pre-filters KNN candidates on a single TAG field.
type TagFilter struct {
	Field string
	Value string
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       *TagFilter
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single vector hit from a search. Score is cosine
// similarity in [0,1] (the store converts from cosine distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
