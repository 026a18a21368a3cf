package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/benjaminschreck/go-redline/pkg/redline"
	"github.com/benjaminschreck/go-redline/pkg/redline/docx"
	"github.com/benjaminschreck/go-redline/pkg/redline/integrity"
	"github.com/benjaminschreck/go-redline/pkg/redline/jobs"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK            = 0
	exitUnresolved    = 1
	exitUsage         = 2
	exitUnrecoverable = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "redline - apply suggested corrections to DOCX and PDF documents")
	fmt.Fprintln(w, "\nUsage: redline <command> [arguments]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  apply-changes <document> <changes.json>  Apply change records and write the result")
	fmt.Fprintln(w, "  extract <document>                      List the addressable units as JSON")
	fmt.Fprintln(w, "  validate <document.docx>                Check package integrity")
	fmt.Fprintln(w, "  repair <document.docx>                  Repair package integrity")
	fmt.Fprintln(w, "  batch <manifest.json>                   Apply changes to many documents")
	fmt.Fprintln(w, "  version                                 Show version information")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "version":
		fmt.Fprintf(stdout, "redline version %s\n", version)
		return exitOK
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	case "apply-changes":
		return applyChanges(ctx, rest, stdout, stderr)
	case "extract":
		return extract(rest, stdout, stderr)
	case "validate":
		return validate(rest, stdout, stderr)
	case "repair":
		return repair(rest, stdout, stderr)
	case "batch":
		return batch(ctx, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		usage(stderr)
		return exitUsage
	}
}

// common holds the flags shared by commands that load a configuration.
type common struct {
	configPath string
	mode       string
	comments   bool
	outputDir  string
	logLevel   string
}

func (c *common) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.mode, "mode", "", "simple or tracked")
	fs.BoolVar(&c.comments, "comments", false, "attach motivations as comments")
	fs.StringVarP(&c.outputDir, "output-dir", "o", "", "directory for results")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn, error or off")
}

// load reads the configuration and applies the flags the user set.
func (c *common) load(fs *pflag.FlagSet) (*redline.Config, error) {
	config, err := redline.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("mode") {
		config.Mode = redline.Mode(strings.ToLower(c.mode))
	}
	if fs.Changed("comments") {
		config.IncludeComments = c.comments
	}
	if fs.Changed("output-dir") {
		config.OutputDir = c.outputDir
	}
	if fs.Changed("log-level") {
		config.LogLevel = c.logLevel
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func editor(config *redline.Config, stderr io.Writer) (*redline.Editor, error) {
	return redline.NewEditor(config, redline.WithLogger(redline.NewLoggerFromConfig(config, stderr)))
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// invalid reports a problem with the command line, configuration or input files.
func invalid(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUsage
}

// failure reports an error that stopped processing.
func failure(stderr io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Error: interrupted")
		return exitUnrecoverable
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUnrecoverable
}

func applyChanges(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("apply-changes", stderr)
	var flags common
	flags.register(fs)
	granularity := fs.String("granularity", "", "phrase or word")
	sidecar := fs.Bool("sidecar", false, "also write PDF highlights as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: redline apply-changes <document> <changes.json> [flags]")
		fs.PrintDefaults()
		return exitUsage
	}

	config, err := flags.load(fs)
	if err != nil {
		return invalid(stderr, err)
	}
	if fs.Changed("sidecar") {
		config.PDFSidecar = *sidecar
	}
	if fs.Changed("granularity") {
		config.Granularity = *granularity
		if err := config.Validate(); err != nil {
			return invalid(stderr, err)
		}
	}
	changes, err := redline.LoadChanges(fs.Arg(1))
	if err != nil {
		return invalid(stderr, err)
	}
	e, err := editor(config, stderr)
	if err != nil {
		return invalid(stderr, err)
	}

	res, err := e.Apply(ctx, fs.Arg(0), changes)
	if err != nil {
		return failure(stderr, err)
	}
	writeJSON(stdout, res)
	if !res.Complete() {
		return exitUnresolved
	}
	return exitOK
}

func extract(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("extract", stderr)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: redline extract <document>")
		return exitUsage
	}
	s, err := redline.Extract(fs.Arg(0))
	if err != nil {
		return failure(stderr, err)
	}
	writeJSON(stdout, s)
	return exitOK
}

func openDocx(path string) (*docx.Package, error) {
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return nil, &redline.UnrecoverablePackageError{Path: path, Cause: fmt.Errorf("not a .docx file")}
	}
	pkg, err := docx.Open(path)
	if err != nil {
		return nil, &redline.UnrecoverablePackageError{Path: path, Cause: err}
	}
	return pkg, nil
}

func validate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("validate", stderr)
	tracked := fs.Bool("tracked", false, "also require revision tracking settings")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: redline validate <document.docx> [--tracked]")
		return exitUsage
	}
	pkg, err := openDocx(fs.Arg(0))
	if err != nil {
		return failure(stderr, err)
	}
	report := integrity.Validate(pkg, integrity.DefaultOptions(*tracked))
	writeJSON(stdout, report)
	if !report.Valid {
		return exitUnresolved
	}
	return exitOK
}

func repair(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("repair", stderr)
	tracked := fs.Bool("tracked", false, "also repair revision tracking settings")
	output := fs.StringP("output", "o", "", "output path (default <name>_repaired.docx)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: redline repair <document.docx> [--tracked] [--output path]")
		return exitUsage
	}
	path := fs.Arg(0)
	pkg, err := openDocx(path)
	if err != nil {
		return failure(stderr, err)
	}
	outcome, err := integrity.ValidateRepair(pkg, integrity.DefaultOptions(*tracked))
	if err != nil {
		return failure(stderr, &redline.UnrecoverablePackageError{Path: path, Cause: err})
	}

	dest := *output
	if dest == "" {
		dest = strings.TrimSuffix(path, filepath.Ext(path)) + "_repaired.docx"
	}
	if err := pkg.Save(dest); err != nil {
		return failure(stderr, &redline.UnrecoverablePackageError{Path: dest, Cause: err})
	}
	writeJSON(stdout, struct {
		Output string `json:"output"`
		*integrity.Outcome
	}{dest, outcome})
	if !outcome.After.Valid {
		return exitUnresolved
	}
	return exitOK
}

// loadManifest reads a JSON array of jobs, or an object holding one under "jobs". A job may
// name a changes file instead of listing its changes inline; relative paths are resolved
// against the manifest's directory.
func loadManifest(path string) ([]redline.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	type entry struct {
		Document    string          `json:"document"`
		Changes     json.RawMessage `json:"changes"`
		ChangesFile string          `json:"changes_file"`
	}
	var entries []entry
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Jobs []entry `json:"jobs"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		entries = wrapper.Jobs
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	out := make([]redline.Job, 0, len(entries))
	for i, e := range entries {
		if e.Document == "" {
			return nil, fmt.Errorf("manifest entry %d: missing document", i)
		}
		job := redline.Job{Document: resolve(e.Document)}
		switch {
		case e.ChangesFile != "":
			job.Changes, err = redline.LoadChanges(resolve(e.ChangesFile))
		case len(e.Changes) > 0:
			job.Changes, err = redline.ParseChanges(strings.NewReader(string(e.Changes)))
		}
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		out = append(out, job)
	}
	return out, nil
}

func batch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("batch", stderr)
	var flags common
	flags.register(fs)
	concurrency := fs.IntP("concurrency", "j", 0, "documents processed at once")
	redisAddr := fs.String("redis", "", "Redis address for job records")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: redline batch <manifest.json> [flags]")
		fs.PrintDefaults()
		return exitUsage
	}

	config, err := flags.load(fs)
	if err != nil {
		return invalid(stderr, err)
	}
	if fs.Changed("concurrency") {
		config.Concurrency = *concurrency
	}
	if fs.Changed("redis") {
		config.RedisAddr = *redisAddr
	}
	if err := config.Validate(); err != nil {
		return invalid(stderr, err)
	}
	manifest, err := loadManifest(fs.Arg(0))
	if err != nil {
		return invalid(stderr, err)
	}
	e, err := editor(config, stderr)
	if err != nil {
		return invalid(stderr, err)
	}

	var store jobs.Store
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return failure(stderr, fmt.Errorf("failed to reach redis at %s: %w", config.RedisAddr, err))
		}
		store = jobs.NewRedisStore(client, config.JobTTL)
	}
	b := redline.NewBatch(e, store)
	records, err := b.Run(ctx, manifest)
	if records == nil {
		return failure(stderr, err)
	}
	writeJSON(stdout, records)
	if err != nil {
		return failure(stderr, err)
	}

	code := exitOK
	for _, rec := range records {
		if rec.Unresolved > 0 {
			code = exitUnresolved
		}
	}
	return code
}
