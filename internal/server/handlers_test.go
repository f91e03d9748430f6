package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/files"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notebook"
	"github.com/hyperjump/kioku/internal/storage"
)

func newTestServer(t *testing.T, embedder embedding.Embedder) *httptest.Server {
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

	disk, err := storage.NewDiskFileStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.FilesDir = filepath.Join(dir, "files")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	logger := zap.NewNop()
	notes := notebook.NewService(store, embedder, idx, cfg, logger)
	fileSvc := files.NewService(store, disk, logger)
	srv := httptest.NewServer(NewServer(notes, fileSvc, store, cfg, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestNoteLifecycle(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	resp := postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{
		Key:  "go/contexts",
		Body: "pass context as the first parameter",
		Tags: models.TagList{"go"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("store status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Keys with slashes round-trip through the wildcard route.
	getResp, err := http.Get(srv.URL + "/api/v1/notes/go/contexts")
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", getResp.StatusCode)
	}
	var note models.Note
	decodeJSON(t, getResp, &note)
	if note.Key != "go/contexts" || note.Body != "pass context as the first parameter" {
		t.Errorf("note = %+v", note)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/notes/go/contexts", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", delResp.StatusCode)
	}

	getResp2, _ := http.Get(srv.URL + "/api/v1/notes/go/contexts")
	getResp2.Body.Close()
	if getResp2.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", getResp2.StatusCode)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))
	resp, _ := http.Get(srv.URL + "/api/v1/notes/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStoreNote_BadRequest(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	resp, err := http.Post(srv.URL+"/api/v1/notes", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "no-body"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing body status = %d", resp.StatusCode)
	}
}

func TestStoreNote_EncoderDown(t *testing.T) {
	down, err := embedding.NewHTTPEmbedder("http://127.0.0.1:1", "m", 16, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, down)

	resp := postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "k", Body: "b"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "a", Body: "redis eviction policies"}).Body.Close()
	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "b", Body: "garden watering schedule"}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/v1/search", models.SearchQuery{Query: "redis eviction policies"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result models.SearchResponse
	decodeJSON(t, resp, &result)
	if len(result.Results) == 0 || result.Results[0].Note.Key != "a" {
		t.Errorf("results = %+v", result.Results)
	}

	// Empty query is a client error.
	resp = postJSON(t, srv.URL+"/api/v1/search", models.SearchQuery{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query status = %d", resp.StatusCode)
	}
}

func TestSuggest(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{
		Key: "a", Body: "nginx reverse proxy config", Tags: models.TagList{"ops"},
	}).Body.Close()

	resp := postJSON(t, srv.URL+"/api/v1/suggest", models.SuggestRequest{Body: "nginx reverse proxy config"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var suggested models.SuggestResponse
	decodeJSON(t, resp, &suggested)
	if len(suggested.Tags) != 1 || suggested.Tags[0] != "ops" {
		t.Errorf("tags = %v", suggested.Tags)
	}
}

func TestGraph(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "a", Body: "shared subject"}).Body.Close()
	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "b", Body: "shared subject"}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/graph?k=2")
	if err != nil {
		t.Fatal(err)
	}
	var graph models.Graph
	decodeJSON(t, resp, &graph)
	if len(graph.Nodes) != 2 || len(graph.Links) != 1 {
		t.Errorf("graph = %+v", graph)
	}

	badResp, _ := http.Get(srv.URL + "/api/v1/graph?k=zero")
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad k status = %d", badResp.StatusCode)
	}
}

func TestListNotesByTag(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "a", Body: "x", Tags: models.TagList{"keep"}}).Body.Close()
	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "b", Body: "y"}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/notes?tag=keep")
	if err != nil {
		t.Fatal(err)
	}
	var listing struct {
		Notes []*models.NoteSummary `json:"notes"`
	}
	decodeJSON(t, resp, &listing)
	if len(listing.Notes) != 1 || listing.Notes[0].Key != "a" {
		t.Errorf("notes = %+v", listing.Notes)
	}
}

func TestFileLifecycle(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	content := base64.StdEncoding.EncodeToString([]byte("attachment bytes"))
	resp := postJSON(t, srv.URL+"/api/v1/files", models.FileInput{
		Name:          "docs/review.txt",
		ContentBase64: content,
		MimeType:      "text/plain",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("store status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/api/v1/files/docs/review.txt")
	if err != nil {
		t.Fatal(err)
	}
	var file models.FileContent
	decodeJSON(t, getResp, &file)
	if file.ContentBase64 != content || file.MimeType != "text/plain" {
		t.Errorf("file = %+v", file)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/files/docs/review.txt", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", delResp.StatusCode)
	}

	missing, _ := http.Get(srv.URL + "/api/v1/files/docs/review.txt")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", missing.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, embedding.NewMockEmbedder(16))

	postJSON(t, srv.URL+"/api/v1/notes", models.NoteInput{Key: "a", Body: "x"}).Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var status map[string]interface{}
	decodeJSON(t, resp, &status)
	if status["notes"].(float64) != 1 || status["embeddings"].(float64) != 1 {
		t.Errorf("status = %v", status)
	}
	if _, ok := status["config"]; !ok {
		t.Error("status missing config section")
	}
}
