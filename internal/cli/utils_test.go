package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kioku/internal/models"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("empty = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("json = %v, %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	resp := &models.SearchResponse{
		Results: []*models.SearchResult{
			{Note: &models.Note{Key: "go/errors", Body: "wrap with %w", Tags: []string{"go"}}, Score: 0.91, Rank: 1},
		},
		Total:     1,
		QueryTime: 4,
		Query:     "errors",
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 results", "semantic", "go/errors", "0.9100", "Tags: go"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	resp := &models.SearchResponse{Query: "q", Total: 0, Results: []*models.SearchResult{}}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "q" {
		t.Errorf("query = %q", decoded.Query)
	}
}

func TestWriteNoteList(t *testing.T) {
	summaries := []*models.NoteSummary{
		{Key: "a", Tags: []string{"x", "y"}},
		{Key: "b"},
	}
	var buf bytes.Buffer
	if err := WriteNoteList(&buf, summaries, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a  [x, y]") || !strings.Contains(out, "b\n") {
		t.Errorf("output:\n%s", out)
	}
}

func TestWriteTags_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTags(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no suggestions") {
		t.Errorf("output: %q", buf.String())
	}
}

func TestWriteGraph_Text(t *testing.T) {
	graph := &models.Graph{
		Nodes: []*models.GraphNode{
			{Key: "a", Title: "First"},
			{Key: "b", Title: "Second"},
		},
		Links: []*models.GraphLink{
			{Source: "a", Target: "b", Similarity: 0.8},
		},
	}
	var buf bytes.Buffer
	if err := WriteGraph(&buf, graph, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 notes, 1 links") {
		t.Errorf("header missing:\n%s", out)
	}
	// The undirected link shows under both endpoints.
	if strings.Count(out, "0.800") != 2 {
		t.Errorf("link not shown for both nodes:\n%s", out)
	}
}
