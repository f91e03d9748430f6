package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/notebook"
	"github.com/hyperjump/kioku/internal/storage"
)

func newTestNotebook(t *testing.T) *notebook.Service {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return notebook.NewService(store, embedding.NewMockEmbedder(32), idx, cfg, zap.NewNop())
}

func TestNoteKey(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"/inbox", "/inbox/meeting.md", "import/meeting"},
		{"/inbox", "/inbox/projects/roadmap.txt", "import/projects/roadmap"},
		{"/inbox", "/inbox/report.pdf", "import/report"},
	}
	for _, tt := range tests {
		if got := NoteKey(tt.root, tt.path); got != tt.want {
			t.Errorf("NoteKey(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestMatchExtension(t *testing.T) {
	exts := []string{".txt", "md"}
	if !matchExtension("/x/a.txt", exts) || !matchExtension("/x/a.MD", exts) {
		t.Error("configured extensions rejected")
	}
	if matchExtension("/x/a.pdf", exts) {
		t.Error("unconfigured extension accepted")
	}
	if !matchExtension("/x/anything.bin", nil) {
		t.Error("empty filter should accept everything")
	}
}

func TestSyncExisting(t *testing.T) {
	notes := newTestNotebook(t)
	inbox := t.TempDir()

	if err := os.MkdirAll(filepath.Join(inbox, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(inbox, "first.md"), []byte("alpha content"), 0644)
	_ = os.WriteFile(filepath.Join(inbox, "sub", "second.txt"), []byte("beta content"), 0644)
	_ = os.WriteFile(filepath.Join(inbox, "skipped.bin"), []byte("binary"), 0644)

	recursive := true
	imp := New(notes, &config.ImportConfig{
		Directories: []string{inbox},
		Extensions:  []string{".md", ".txt"},
		Recursive:   &recursive,
	}, zap.NewNop())
	imp.SyncExisting()

	ctx := context.Background()
	note, err := notes.Get(ctx, "import/first")
	if err != nil {
		t.Fatal(err)
	}
	if note.Body != "alpha content" {
		t.Errorf("body = %q", note.Body)
	}
	if _, err := notes.Get(ctx, "import/sub/second"); err != nil {
		t.Errorf("nested file not ingested: %v", err)
	}
	if _, err := notes.Get(ctx, "import/skipped"); err == nil {
		t.Error("filtered extension was ingested")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Debugging Go Channels!", "debugging-go-channels"},
		{"  --- ", ""},
		{strings.Repeat("a", 100), strings.Repeat("a", 80)},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const exportFixture = `[
  {
    "id": "conv-1",
    "title": "Debugging Go Channels",
    "create_time": 1700000000,
    "mapping": {
      "root": {"parent": "", "children": ["m1"], "message": null},
      "m1": {
        "parent": "root",
        "children": ["m2"],
        "message": {
          "author": {"role": "user"},
          "content": {"parts": ["How do I debug a goroutine leak? I have a channel that never closes and the runtime keeps growing. What tools show blocked goroutines and where they are parked?"]}
        }
      },
      "m2": {
        "parent": "m1",
        "children": [],
        "message": {
          "author": {"role": "assistant"},
          "content": {"parts": ["Use the pprof goroutine profile. Hit /debug/pprof/goroutine?debug=2 and look for goroutines blocked on chan receive; the stack shows the exact line holding them."]}
        }
      }
    }
  },
  {
    "id": "conv-2",
    "title": "hi",
    "create_time": 1700000000,
    "mapping": {
      "root": {"parent": "", "children": ["m1"], "message": null},
      "m1": {
        "parent": "root",
        "children": [],
        "message": {"author": {"role": "user"}, "content": {"parts": ["hi"]}}
      }
    }
  }
]`

func TestImportConversations(t *testing.T) {
	notes := newTestNotebook(t)
	ctx := context.Background()

	stats, err := ImportConversations(ctx, notes, strings.NewReader(exportFixture), 100, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Stored != 1 || stats.SkippedShort != 1 {
		t.Errorf("stats = %+v", stats)
	}

	note, err := notes.Get(ctx, "conversation/2023-11-14-debugging-go-channels")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(note.Body, "# Debugging Go Channels") {
		t.Errorf("body missing title header: %q", note.Body)
	}
	if !strings.Contains(note.Body, "**User:**") || !strings.Contains(note.Body, "**Assistant:**") {
		t.Errorf("body missing role labels: %q", note.Body)
	}
	found := false
	for _, tag := range note.Tags {
		if tag == "chatgpt" {
			found = true
		}
	}
	if !found {
		t.Errorf("chatgpt marker tag missing: %v", note.Tags)
	}
}

func TestImportConversations_BadJSON(t *testing.T) {
	notes := newTestNotebook(t)
	if _, err := ImportConversations(context.Background(), notes, strings.NewReader("{not json"), 0, zap.NewNop()); err == nil {
		t.Error("expected error for malformed export")
	}
}
