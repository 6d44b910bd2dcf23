// ABOUTME: Entry point for the shelfsync CLI
// ABOUTME: Local-first book shelf with background sync to a remote API

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/lanternsoft/shelfsync/internal/config"
	"github.com/lanternsoft/shelfsync/internal/engine"
	"github.com/lanternsoft/shelfsync/internal/reachability"
	"github.com/lanternsoft/shelfsync/internal/remote"
	"github.com/lanternsoft/shelfsync/internal/shelf"
	"github.com/lanternsoft/shelfsync/internal/store"
	"github.com/lanternsoft/shelfsync/internal/synclog"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _          _  __
  ___| |__   ___| |/ _|___ _   _ _ __   ___
 / __| '_ \ / _ \ | |_/ __| | | | '_ \ / __|
 \__ \ | | |  __/ |  _\__ \ |_| | | | | (__
 |___/_| |_|\___|_|_| |___/\__, |_| |_|\___|
                           |___/
`

// getConfigPath returns the path to the shelfsync config file.
// Priority: SHELFSYNC_CONFIG env var > XDG_CONFIG_HOME/shelfsync/config.yaml > ~/.config/shelfsync/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SHELFSYNC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "shelfsync", "config.yaml")
}

// getDataPath returns the path to the shelfsync data directory.
// Priority: XDG_DATA_HOME/shelfsync > ~/.local/share/shelfsync
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "shelfsync")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: shelfsync <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  init                    Create a new config file interactively")
		fmt.Println("  add --title TITLE       Add a book to the shelf")
		fmt.Println("  edit ID [flags]         Edit a book")
		fmt.Println("  rm ID                   Remove a book")
		fmt.Println("  list                    List books, newest first")
		fmt.Println("  log                     Show the sync operation log")
		fmt.Println("  sync                    Run a sync pass now (fails when offline)")
		fmt.Println("  seed                    Import a sample of remote books")
		fmt.Println("  watch                   Run until interrupted, syncing on reconnect")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit()
	case "add":
		err = runAdd(ctx)
	case "edit":
		err = runEdit(ctx)
	case "rm":
		err = runRm(ctx)
	case "list":
		err = runList(ctx)
	case "log":
		err = runLog(ctx)
	case "sync":
		err = runSync(ctx)
	case "seed":
		err = runSeed(ctx)
	case "watch":
		err = runWatch(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired components behind every command.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	view    *store.View
	service *shelf.Service
	reach   *reachability.Observer
	log     *synclog.Log
}

func (a *app) Close() {
	a.reach.Stop()
	a.view.Close()
	a.store.Close()
}

// openApp loads the config and wires the store, view, engine, reachability
// observer and service. The observer runs an initial probe before this
// returns, so connectivity checks are meaningful immediately.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	view, err := store.NewView(ctx, st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating view: %w", err)
	}

	client := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.AuthToken, cfg.Remote.Timeout)
	opLog := synclog.New(cfg.Sync.LogCapacity)
	eng := engine.New(st, client, opLog)

	monitor := &reachability.DialMonitor{Addr: cfg.Network.ProbeAddr, Timeout: cfg.Remote.Timeout}
	reach := reachability.New(monitor, &reachability.Config{
		ProbeInterval:   cfg.Network.ProbeInterval,
		OfflineFlagPath: cfg.Network.OfflineFlagPath,
	})

	service := shelf.NewService(st, view, eng, reach, client, opLog)

	if err := reach.Start(ctx); err != nil {
		view.Close()
		st.Close()
		return nil, fmt.Errorf("starting reachability observer: %w", err)
	}

	return &app{cfg: cfg, store: st, view: view, service: service, reach: reach, log: opLog}, nil
}

// waitSettled polls a record until it leaves pending or the timeout elapses.
// Used by one-shot commands so a triggered pass finishes before exit.
func waitSettled(ctx context.Context, a *app, id string) {
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		record, err := a.store.Get(ctx, id)
		if err != nil || record.SyncStatus != store.StatusPending {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-tick.C:
		}
	}
}

func runAdd(ctx context.Context) error {
	fields, rest, err := parseFields(os.Args[2:])
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.service.Add(ctx, fields)
	if err != nil {
		return err
	}

	if a.reach.EffectivelyOnline() {
		waitSettled(ctx, a, record.ID)
	}

	record, err = a.store.Get(ctx, record.ID)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Added %q (%s)\n", record.Title, record.ID)
	printStatus(record)
	return nil
}

func runEdit(ctx context.Context) error {
	if len(os.Args) < 3 || strings.HasPrefix(os.Args[2], "-") {
		return fmt.Errorf("usage: shelfsync edit ID [flags]")
	}
	id := os.Args[2]

	fields, rest, err := parseFields(os.Args[3:])
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.service.Edit(ctx, id, fields)
	if err != nil {
		return err
	}

	if a.reach.EffectivelyOnline() {
		waitSettled(ctx, a, record.ID)
	}

	record, err = a.store.Get(ctx, record.ID)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Updated %q\n", record.Title)
	printStatus(record)
	return nil
}

func runRm(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: shelfsync rm ID")
	}
	id := os.Args[2]

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.Delete(ctx, id); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Removed %s\n", id)

	// Give a fired remote delete a moment to go out before teardown.
	time.Sleep(200 * time.Millisecond)
	return nil
}

func runList(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records := a.service.Records()
	if len(records) == 0 {
		fmt.Println("Shelf is empty.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, record := range records {
		fmt.Printf("  %-40q", record.Title)
		if record.Author != "" {
			gray.Printf("  %s", record.Author)
		}
		if record.Rating > 0 {
			fmt.Printf("  %s", strings.Repeat("★", record.Rating))
		}
		if record.Read {
			gray.Print("  read")
		}
		fmt.Printf("  %s", statusLabel(record.SyncStatus))
		gray.Printf("  %s\n", record.ID)
	}
	return nil
}

func runLog(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries := a.service.SyncLog()
	if len(entries) == 0 {
		fmt.Println("No sync activity recorded.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, entry := range entries {
		gray.Printf("  %s  ", entry.Time.Local().Format("15:04:05"))
		fmt.Printf("%-10s %-8s %q", entry.Operation, outcomeLabel(entry.Outcome), entry.Title)
		if entry.Detail != "" {
			gray.Printf("  %s", entry.Detail)
		}
		fmt.Println()
	}
	return nil
}

func runSync(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.ManualSync(ctx); err != nil {
		if errors.Is(err, shelf.ErrOffline) {
			color.New(color.FgYellow).Println("  Offline: nothing was synced.")
			return nil
		}
		return err
	}

	records := a.service.Records()
	pending, failed := 0, 0
	for _, record := range records {
		switch record.SyncStatus {
		case store.StatusPending:
			pending++
		case store.StatusFailed:
			failed++
		}
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Sync pass complete: %d record(s), %d pending, %d failed\n", len(records), pending, failed)
	return nil
}

func runSeed(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	inserted, err := a.service.ImportRemoteSample(ctx, a.cfg.Sync.SampleLimit)
	if err != nil {
		return fmt.Errorf("importing sample: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Imported %d new record(s)\n", inserted)
	return nil
}

func runWatch(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", getConfigPath())
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", a.cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Remote:   %s\n", a.cfg.Remote.BaseURL)
	fmt.Println()

	if a.reach.EffectivelyOnline() {
		green.Println("    online")
	} else {
		yellow.Println("    offline")
	}

	a.reach.OnChange(func(online bool) {
		if online {
			green.Println("    online")
		} else {
			yellow.Println("    offline")
		}
	})

	a.service.TriggerSyncIfOnline()

	<-ctx.Done()
	fmt.Println()
	return nil
}

// parseFields reads --title/--author/--rating/--notes/--read flags.
// Supports both "--flag value" and "--flag=value" formats.
func parseFields(args []string) (shelf.Fields, []string, error) {
	var fields shelf.Fields
	var rest []string

	take := func(args []string, i int, name string) (string, int, error) {
		arg := args[i]
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			return arg[eq+1:], i, nil
		}
		if i+1 >= len(args) {
			return "", i, fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], i + 1, nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		var err error
		switch {
		case arg == "--title" || strings.HasPrefix(arg, "--title="):
			value, i, err = take(args, i, "--title")
			fields.Title = value
		case arg == "--author" || strings.HasPrefix(arg, "--author="):
			value, i, err = take(args, i, "--author")
			fields.Author = value
		case arg == "--rating" || strings.HasPrefix(arg, "--rating="):
			value, i, err = take(args, i, "--rating")
			if err == nil {
				fields.Rating, err = strconv.Atoi(value)
			}
		case arg == "--notes" || strings.HasPrefix(arg, "--notes="):
			value, i, err = take(args, i, "--notes")
			fields.Notes = value
		case arg == "--read":
			fields.Read = true
		case strings.HasPrefix(arg, "-"):
			return fields, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			rest = append(rest, arg)
		}
		if err != nil {
			return fields, nil, err
		}
	}

	return fields, rest, nil
}

func printStatus(record *store.Record) {
	gray := color.New(color.FgHiBlack)
	fmt.Printf("    status: %s", statusLabel(record.SyncStatus))
	if record.RemoteID != 0 {
		gray.Printf("  remote id %d", record.RemoteID)
	}
	fmt.Println()
}

func statusLabel(status store.SyncStatus) string {
	switch status {
	case store.StatusSynced:
		return color.GreenString("synced")
	case store.StatusFailed:
		return color.New(color.FgRed, color.Bold).Sprint("failed")
	default:
		return color.YellowString("pending")
	}
}

func outcomeLabel(outcome synclog.Outcome) string {
	switch outcome {
	case synclog.OutcomeSuccess:
		return color.GreenString(string(outcome))
	case synclog.OutcomeFailed:
		return color.New(color.FgRed, color.Bold).Sprint(string(outcome))
	default:
		return color.YellowString(string(outcome))
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("shelfsync configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "shelf.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Remote Configuration ---")
	baseURL := prompt(reader, "Remote API base URL", "https://books.example.com/api")
	authToken := prompt(reader, "Auth token (leave empty or use ${VAR})", "")

	fmt.Println("\n--- Network Configuration ---")
	probeAddr := prompt(reader, "Connectivity probe address", "1.1.1.1:443")
	offlineFlag := prompt(reader, "Offline flag file path", filepath.Join(defaultDataPath, "offline"))

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# shelfsync configuration\n")
	cfg.WriteString("# Generated by shelfsync init\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("remote:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	if authToken != "" {
		cfg.WriteString(fmt.Sprintf("  auth_token: \"%s\"\n", authToken))
	}
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("network:\n")
	cfg.WriteString(fmt.Sprintf("  probe_addr: \"%s\"\n", probeAddr))
	cfg.WriteString("  probe_interval: \"5s\"\n")
	cfg.WriteString(fmt.Sprintf("  offline_flag_path: \"%s\"\n", offlineFlag))
	cfg.WriteString("\n")

	cfg.WriteString("sync:\n")
	cfg.WriteString("  log_capacity: 50\n")
	cfg.WriteString("  sample_limit: 10\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo add your first book:")
	fmt.Printf("  shelfsync add --title \"The Go Programming Language\"\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
