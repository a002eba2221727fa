// Command fp-backfill rebuilds the vector index from transcript artifacts on
// disk. Ingestion writes a <video>.transcript.json next to every upload, so a
// wiped or re-windowed collection can be restored without re-transcribing.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/qdrant/go-client/qdrant"

	"github.com/framepoint/framepoint/config"
	"github.com/framepoint/framepoint/searchindex"
	"github.com/framepoint/framepoint/server"
	"github.com/framepoint/framepoint/transcribe"
)

const transcriptSuffix = ".transcript.json"

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	appCfg, err := config.Load(cfg.EnvFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	appCfg.ApplyLogging()
	if cfg.Collection != "" {
		appCfg.QdrantCollection = cfg.Collection
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcripts, err := collectTranscripts(cfg.InputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if len(transcripts) == 0 {
		fmt.Fprintln(os.Stderr, "no *"+transcriptSuffix+" files found")
		os.Exit(2)
	}

	var index *searchindex.Index
	if !cfg.DryRun {
		if appCfg.OpenAIAPIKey == "" {
			fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY")
			os.Exit(2)
		}
		client := openai.NewClient(option.WithAPIKey(appCfg.OpenAIAPIKey))
		qdrantClient, err := qdrant.NewClient(&qdrant.Config{
			Host:   appCfg.QdrantHost,
			Port:   appCfg.QdrantPort,
			APIKey: appCfg.QdrantAPIKey,
			UseTLS: appCfg.QdrantUseTLS,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		index, err = searchindex.New(qdrantClient, &client, searchindex.Options{
			Collection:     appCfg.QdrantCollection,
			EmbeddingModel: appCfg.EmbeddingModel,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if err := index.EnsureCollection(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "ensure collection: %s\n", err.Error())
			os.Exit(1)
		}
	}

	start := time.Now()
	totalSegments := 0
	for i, path := range transcripts {
		n, err := backfillTranscript(ctx, index, path, cfg.WindowChars, cfg.DryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed indexing %s: %s\n", path, err.Error())
			os.Exit(1)
		}
		totalSegments += n

		// Progress logging: embedding large libraries is slow and otherwise silent.
		fmt.Fprintf(os.Stderr, "progress fp-backfill: %d/%d transcripts indexed (last=%s segments=%d elapsed=%s)\n",
			i+1, len(transcripts), filepath.Base(path), n, time.Since(start).Round(time.Second))
	}

	fmt.Fprintf(os.Stdout, "transcripts_processed=%d segments_indexed=%d collection=%s dry_run=%v\n",
		len(transcripts), totalSegments, appCfg.QdrantCollection, cfg.DryRun)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to a single *.transcript.json artifact OR a directory containing them (usually the upload dir)")
	fs.StringVar(&cfg.Collection, "collection", cfg.Collection, "Qdrant collection to index into (overrides QDRANT_COLLECTION)")
	fs.IntVar(&cfg.WindowChars, "window-chars", cfg.WindowChars, "Character budget per indexed segment window")
	fs.StringVar(&cfg.EnvFile, "env", cfg.EnvFile, "Optional .env file overloading the process environment")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Parse and merge transcripts without writing to the vector store")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/fp-backfill -in temp_uploads -dry-run")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.InputPath != "" {
		cfg.InputPath = filepath.Clean(cfg.InputPath)
	}
	return cfg, nil
}

func collectTranscripts(inputPath string) ([]string, error) {
	fi, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stat -in: %w", err)
	}

	if !fi.IsDir() {
		if !strings.HasSuffix(inputPath, transcriptSuffix) {
			return nil, fmt.Errorf("input file must end in %s: %s", transcriptSuffix, inputPath)
		}
		return []string{inputPath}, nil
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, transcriptSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("read dir entry info %s: %w", name, err)
		}
		if info.Mode()&fs.ModeType != 0 {
			continue
		}
		files = append(files, filepath.Join(inputPath, name))
	}
	slices.Sort(files)
	return files, nil
}

// backfillTranscript re-merges one artifact and indexes it under the identity
// encoded in its filename. With dryRun the vector store is never touched.
func backfillTranscript(ctx context.Context, index *searchindex.Index, path string, windowChars int, dryRun bool) (int, error) {
	storedName := strings.TrimSuffix(filepath.Base(path), transcriptSuffix)
	userID, videoID, display, err := server.ParseStoredName(storedName)
	if err != nil {
		return 0, err
	}

	raw, err := transcribe.ReadTranscript(path)
	if err != nil {
		return 0, err
	}
	merged := transcribe.MergeSegments(raw, windowChars)

	segments := make([]searchindex.Segment, 0, len(merged))
	for _, seg := range merged {
		segments = append(segments, searchindex.Segment{
			Text:      seg.Text,
			Filename:  storedName,
			VideoID:   videoID,
			UserID:    userID,
			Title:     display,
			StartTime: seg.Start,
			EndTime:   seg.End,
		})
	}
	if dryRun {
		return len(segments), nil
	}
	return index.Upsert(ctx, segments)
}
