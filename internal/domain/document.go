package domain

// IndexedDocument is a text chunk together with its embedding.
type IndexedDocument struct {
	Text   string
	Vector []float64
}

// SearchHit is one nearest-neighbour result; the vector is never returned.
type SearchHit struct {
	Text  string
	Score float64
}
