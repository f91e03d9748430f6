package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notebook"
)

// DefaultMinChars is the minimum combined message length for an imported
// conversation; shorter ones carry no searchable signal.
const DefaultMinChars = 300

// assistantTrim caps assistant replies in the note body to keep notes
// scannable.
const assistantTrim = 1200

// conversation is one entry in a ChatGPT conversations.json export. Messages
// form a tree via the mapping; parent of the root is absent from it.
type conversation struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	CreateTime float64                `json:"create_time"`
	UpdateTime float64                `json:"update_time"`
	Mapping    map[string]mappingNode `json:"mapping"`
}

type mappingNode struct {
	Parent   string    `json:"parent"`
	Children []string  `json:"children"`
	Message  *convNode `json:"message"`
}

type convNode struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	Content struct {
		Parts []json.RawMessage `json:"parts"`
	} `json:"content"`
}

type convMessage struct {
	role string
	text string
}

// ImportStats summarizes a conversation import run.
type ImportStats struct {
	Total        int `json:"total"`
	Stored       int `json:"stored"`
	SkippedShort int `json:"skipped_short"`
}

// ImportConversationsFile imports a ChatGPT conversations.json export file.
func ImportConversationsFile(ctx context.Context, notes *notebook.Service, path string, minChars int, logger *zap.Logger) (*ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return ImportConversations(ctx, notes, f, minChars, logger)
}

// ImportConversations parses an export stream and stores each conversation as
// a note keyed "conversation/<date>-<slug>". Conversations whose combined
// message text is under minChars are skipped. Tags merge a fixed "chatgpt"
// marker with centroid suggestions.
func ImportConversations(ctx context.Context, notes *notebook.Service, r io.Reader, minChars int, logger *zap.Logger) (*ImportStats, error) {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	var conversations []conversation
	if err := json.NewDecoder(r).Decode(&conversations); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}

	stats := &ImportStats{}
	for _, conv := range conversations {
		stats.Total++
		messages := conv.flatten()

		var contentLen int
		for _, m := range messages {
			contentLen += len(m.text)
		}
		if contentLen < minChars {
			stats.SkippedShort++
			continue
		}

		body := buildConversationBody(conv.title(), conv.date(), messages)
		tags := models.TagList{"chatgpt"}
		if suggested, err := notes.Suggest(ctx, body); err == nil {
			for _, t := range suggested {
				if t != "chatgpt" {
					tags = append(tags, t)
				}
			}
		}

		key := conv.noteKey()
		if _, err := notes.Store(ctx, &models.NoteInput{Key: key, Body: body, Tags: tags}); err != nil {
			return stats, fmt.Errorf("store conversation %s: %w", key, err)
		}
		stats.Stored++
		logger.Debug("imported conversation", zap.String("key", key), zap.Int("messages", len(messages)))
	}
	logger.Info("conversation import finished",
		zap.Int("total", stats.Total),
		zap.Int("stored", stats.Stored),
		zap.Int("skipped_short", stats.SkippedShort))
	return stats, nil
}

func (c *conversation) title() string {
	if c.Title == "" {
		return "Untitled"
	}
	return c.Title
}

func (c *conversation) date() string {
	ts := c.CreateTime
	if ts == 0 {
		ts = c.UpdateTime
	}
	if ts == 0 {
		return "unknown"
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02")
}

func (c *conversation) noteKey() string {
	slug := slugify(c.title())
	if slug == "" {
		if c.ID != "" {
			slug = slugify(c.ID)
		} else {
			slug = uuid.NewString()[:8]
		}
	}
	return fmt.Sprintf("conversation/%s-%s", c.date(), slug)
}

// flatten walks the message tree from the root in document order, keeping
// non-empty user and assistant messages.
func (c *conversation) flatten() []convMessage {
	var root string
	for id, node := range c.Mapping {
		if node.Parent == "" {
			root = id
			break
		}
		if _, ok := c.Mapping[node.Parent]; !ok {
			root = id
			break
		}
	}
	if root == "" {
		return nil
	}
	visited := make(map[string]struct{})
	return c.walk(root, visited)
}

func (c *conversation) walk(id string, visited map[string]struct{}) []convMessage {
	if _, seen := visited[id]; seen {
		return nil
	}
	node, ok := c.Mapping[id]
	if !ok {
		return nil
	}
	visited[id] = struct{}{}

	var out []convMessage
	if msg := node.Message; msg != nil {
		role := msg.Author.Role
		if role == "user" || role == "assistant" {
			var parts []string
			for _, raw := range msg.Content.Parts {
				// Non-string parts (image references etc.) are dropped.
				var s string
				if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out = append(out, convMessage{role: role, text: strings.Join(parts, "\n")})
			}
		}
	}
	for _, child := range node.Children {
		out = append(out, c.walk(child, visited)...)
	}
	return out
}

func buildConversationBody(title, date string, messages []convMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n*ChatGPT conversation — %s*\n\n", title, date)
	for _, m := range messages {
		text := m.text
		label := "**User:**"
		if m.role == "assistant" {
			label = "**Assistant:**"
			if len(text) > assistantTrim {
				text = text[:assistantTrim] + " …"
			}
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", label, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return slug
}
