// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/files"
	"github.com/hyperjump/kioku/internal/importer"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notebook"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

const defaultServerURL = "http://localhost:8080"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kioku server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "get":
		runGet()
	case "delete":
		runDelete()
	case "list":
		runList()
	case "search":
		runSearch()
	case "suggest":
		runSuggest()
	case "graph":
		runGraph()
	case "import":
		runImport()
	case "backfill":
		runBackfill()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	importCtx, importCancel := context.WithCancel(context.Background())
	defer importCancel()
	var imp *importer.Importer
	if len(cfg.Import.Directories) > 0 {
		imp = importer.New(components.Notes, &cfg.Import, logger)
		if err := imp.Start(importCtx); err != nil {
			logger.Fatal("Failed to start import watcher", zap.Error(err))
		}
		imp.SyncExisting()
	}

	srv := server.NewServer(
		components.Notes,
		components.Files,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if imp != nil {
		imp.Stop()
	}
	importCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	tags := fs.String("tags", "", "comma-separated tags")
	autoTag := fs.Bool("auto-tag", false, "suggest tags when none are given")
	bodyFile := fs.String("file", "", "read the note body from a file instead of arguments")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku add [flags] <key> [body...]")
		os.Exit(1)
	}
	key := fs.Arg(0)

	var body string
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read body file: %v\n", err)
			os.Exit(1)
		}
		body = string(data)
	} else if fs.NArg() > 1 {
		body = strings.Join(fs.Args()[1:], " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" {
		fmt.Fprintln(os.Stderr, "Note body is empty")
		os.Exit(1)
	}

	input := models.NoteInput{Key: key, Body: body, AutoTag: *autoTag}
	if *tags != "" {
		input.Tags = models.NormalizeTags(strings.Split(*tags, ","))
	}

	var note models.Note
	if err := postAPI(*serverURL, "/api/v1/notes", input, &note); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	if len(note.Tags) > 0 {
		fmt.Printf("Stored %s  [%s]\n", note.Key, strings.Join(note.Tags, ", "))
	} else {
		fmt.Printf("Stored %s\n", note.Key)
	}
}

func runGet() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku get [flags] <key>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var note models.Note
	if err := getAPI(*serverURL, "/api/v1/notes/"+fs.Arg(0), &note); err != nil {
		fmt.Fprintf(os.Stderr, "Get failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteNote(os.Stdout, &note, format)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku delete [flags] <key>")
		os.Exit(1)
	}
	key := fs.Arg(0)
	if err := deleteAPI(*serverURL, "/api/v1/notes/"+key); err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s\n", key)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	tag := fs.String("tag", "", "filter by tag")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	path := "/api/v1/notes"
	if *tag != "" {
		path += "?tag=" + url.QueryEscape(*tag)
	}
	var listing struct {
		Notes []*models.NoteSummary `json:"notes"`
	}
	if err := getAPI(*serverURL, path, &listing); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteNoteList(os.Stdout, listing.Notes, format)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	keywordMode := fs.Bool("keyword", false, "use keyword search instead of semantic")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	query := models.SearchQuery{Query: queryStr, Limit: *limit, Keyword: *keywordMode}
	var response models.SearchResponse
	if err := postAPI(*serverURL, "/api/v1/search", query, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteSearchResults(os.Stdout, &response, format)
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var body string
	if fs.NArg() > 0 {
		body = strings.Join(fs.Args(), " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" {
		fmt.Println("Usage: kioku suggest [flags] <text>   (or pipe text on stdin)")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var response models.SuggestResponse
	if err := postAPI(*serverURL, "/api/v1/suggest", models.SuggestRequest{Body: body}, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteTags(os.Stdout, response.Tags, format)
}

func runGraph() {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	k := fs.Int("k", 3, "neighbors per note")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var graph models.Graph
	if err := getAPI(*serverURL, fmt.Sprintf("/api/v1/graph?k=%d", *k), &graph); err != nil {
		fmt.Fprintf(os.Stderr, "Graph failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteGraph(os.Stdout, &graph, format)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	minChars := fs.Int("min-chars", importer.DefaultMinChars, "skip conversations with less content than this")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku import [flags] <conversations.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, logger := mustInitDirect(*configPath)
	defer components.Close()
	defer logger.Sync()

	stats, err := importer.ImportConversationsFile(context.Background(), components.Notes, path, *minChars, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d of %d conversations (%d skipped as too short)\n",
		stats.Stored, stats.Total, stats.SkippedShort)
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitDirect(*configPath)
	defer components.Close()
	defer logger.Sync()

	count, err := components.Notes.Backfill(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backfilled %d embedding(s)\n", count)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Notes          int64                  `json:"notes"`
	Embeddings     int64                  `json:"embeddings"`
	Files          int64                  `json:"files"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if err := getAPI(*serverURL, "/api/v1/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("notes:            %d\n", status.Notes)
		fmt.Printf("embeddings:       %d\n", status.Embeddings)
		fmt.Printf("files:            %d\n", status.Files)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"embedding_model", "embedding_dimensions", "auto_tag_threshold", "database_path", "bleve_index_path"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-22s%v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// postAPI posts body as JSON and decodes a 2xx response into out.
func postAPI(serverURL, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getAPI(serverURL, path string, out interface{}) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func deleteAPI(serverURL, path string) error {
	req, err := http.NewRequest(http.MethodDelete, serverURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.NoteIndex
	Notes        *notebook.Service
	Files        *files.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Endpoint == "mock" {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		httpEmbedder, err := embedding.NewHTTPEmbedder(
			cfg.Embedding.Endpoint,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = httpEmbedder
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	disk, err := storage.NewDiskFileStore(cfg.Storage.FilesDir)
	if err != nil {
		_ = store.Close()
		_ = keywordIndex.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	notes := notebook.NewService(store, embedder, keywordIndex, cfg, logger)
	fileSvc := files.NewService(store, disk, logger)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		KeywordIndex: keywordIndex,
		Notes:        notes,
		Files:        fileSvc,
	}, nil
}

// mustInitDirect loads config and builds components for commands that touch
// storage directly (import, backfill). Exits on failure.
func mustInitDirect(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func printUsage() {
	fmt.Println(`kioku - Semantic note store with tag inference

Usage:
  kioku server [flags]              Start the HTTP server
  kioku add [flags] <key> [body]    Store a note (body from args, -file, or stdin)
  kioku get [flags] <key>           Show a note
  kioku delete [flags] <key>        Delete a note
  kioku list [flags]                List notes (optionally -tag)
  kioku search [flags] <query>      Search notes (semantic by default)
  kioku suggest [flags] <text>      Suggest tags for a piece of text
  kioku graph [flags]               Show the note similarity graph
  kioku import [flags] <file>       Import a ChatGPT conversations.json export
  kioku backfill [flags]            Embed notes that are missing a vector
  kioku status [flags]              Show storage and config status
  kioku version                     Show version
  kioku help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging

Client Flags (add/get/delete/list/search/suggest/graph/status):
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Search Flags:
  --limit int        Number of results (default: server's configured limit)
  --keyword          Use the keyword index instead of semantic ranking

Add Flags:
  --tags string      Comma-separated tags
  --auto-tag         Suggest tags when none are given
  --file string      Read the note body from a file

Import/Backfill Flags:
  --config string    Config file path (these commands use storage directly)
  --min-chars int    Import: skip conversations shorter than this (default: 300)

Examples:
  kioku server
  kioku add go/contexts "pass context as the first parameter"
  kioku add --tags go,style go/naming "short names for short scopes"
  kioku add --auto-tag meetings/standup --file notes.md
  kioku search how do contexts propagate deadlines
  kioku search --keyword bleve
  kioku suggest "terraform state locking"
  kioku graph --k 5 --output json
  kioku import ~/Downloads/conversations.json
  kioku backfill
  kioku status --output json`)
}
