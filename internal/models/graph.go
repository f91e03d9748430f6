package models

// GraphNode is a note in the similarity graph.
type GraphNode struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Snippet    string   `json:"snippet"`
	BodyLength int      `json:"body_length"`
}

// GraphLink is an undirected similarity edge between two notes.
type GraphLink struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
}

// Graph is the top-k neighbor graph over all notes with embeddings.
type Graph struct {
	Nodes []*GraphNode `json:"nodes"`
	Links []*GraphLink `json:"links"`
}
