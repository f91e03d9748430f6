// Package cli provides output formatting for the Kioku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// OutputFormat selects how CLI results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	mode := "semantic"
	if response.Keyword {
		mode = "keyword"
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n\n", response.Total, response.QueryTime, mode)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
		fmt.Fprintf(w, "Key: %s\n", result.Note.Key)
		if len(result.Note.Tags) > 0 {
			fmt.Fprintf(w, "Tags: %s\n", strings.Join(result.Note.Tags, ", "))
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Note.Body, 200))
	}
	return nil
}

// WriteNote writes a full note to w.
func WriteNote(w io.Writer, note *models.Note, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, note)
	}
	fmt.Fprintf(w, "Key: %s\n", note.Key)
	if len(note.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(note.Tags, ", "))
	}
	fmt.Fprintf(w, "Created: %s\nUpdated: %s\n\n%s\n",
		note.CreatedAt.Format("2006-01-02 15:04"),
		note.UpdatedAt.Format("2006-01-02 15:04"),
		note.Body)
	return nil
}

// WriteNoteList writes note summaries to w, one per line in text mode.
func WriteNoteList(w io.Writer, summaries []*models.NoteSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, summaries)
	}
	for _, sum := range summaries {
		line := sum.Key
		if len(sum.Tags) > 0 {
			line += "  [" + strings.Join(sum.Tags, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// WriteTags writes suggested tags to w.
func WriteTags(w io.Writer, tags []string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string][]string{"tags": tags})
	}
	if len(tags) == 0 {
		fmt.Fprintln(w, "(no suggestions)")
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintln(w, tag)
	}
	return nil
}

// WriteGraph writes the similarity graph to w. Text mode lists each node with
// its outgoing links.
func WriteGraph(w io.Writer, graph *models.Graph, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, graph)
	}
	linksBySource := make(map[string][]*models.GraphLink)
	for _, link := range graph.Links {
		linksBySource[link.Source] = append(linksBySource[link.Source], link)
		linksBySource[link.Target] = append(linksBySource[link.Target], link)
	}
	fmt.Fprintf(w, "%d notes, %d links\n\n", len(graph.Nodes), len(graph.Links))
	for _, node := range graph.Nodes {
		fmt.Fprintf(w, "%s  (%s)\n", node.Key, utils.Truncate(node.Title, 60))
		for _, link := range linksBySource[node.Key] {
			other := link.Target
			if other == node.Key {
				other = link.Source
			}
			fmt.Fprintf(w, "  ── %.3f ── %s\n", link.Similarity, other)
		}
	}
	return nil
}
