// Package spider walks local directories and SMB shares and feeds every
// eligible file through the extraction engine.
package spider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"docextract/pkg/document"
	"docextract/pkg/engine"
	"docextract/pkg/matcher"
	"docextract/pkg/utils"
)

type FileSystem interface {
	WalkDir(root string, fn fs.WalkDirFunc) error
	Open(name string) (fs.File, error)
}

// LocalFS wrapper
type LocalFS struct{}

func (l *LocalFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (l *LocalFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// Extractor is satisfied by *engine.Engine.
type Extractor interface {
	Extract(ctx context.Context, src document.SourceFile) (*document.ExtractedDocument, error)
}

type Config struct {
	MaxDepth    int   // directory levels below the walk root, 0 for unlimited
	Threads     int   // concurrent extractions when no shared semaphore is set
	MaxFileSize int64 // bytes, 0 for unlimited
	OutputDir   string
	KeepEmpty   bool // report documents that produced no text

	// Structured output options
	Structured bool
	Host       string
	Share      string
}

// Stats counts what a walk did with the files it saw.
type Stats struct {
	Extracted   atomic.Int64
	Empty       atomic.Int64
	Unsupported atomic.Int64
	Duplicates  atomic.Int64
	TooLarge    atomic.Int64
	Unmatched   atomic.Int64
	Failed      atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("extracted=%d empty=%d unsupported=%d duplicates=%d too_large=%d unmatched=%d failed=%d",
		s.Extracted.Load(), s.Empty.Load(), s.Unsupported.Load(), s.Duplicates.Load(),
		s.TooLarge.Load(), s.Unmatched.Load(), s.Failed.Load())
}

type Spider struct {
	Config    Config
	Matcher   *matcher.Matcher
	FS        FileSystem
	Engine    Extractor
	Dedup     *utils.Deduplicator
	Reporter  Reporter
	Stats     *Stats
	Semaphore chan struct{} // If set, use this semaphore for concurrency limitation
}

func NewSpider(cfg Config, m *matcher.Matcher, fsys FileSystem, ex Extractor, dedup *utils.Deduplicator, reporter Reporter) *Spider {
	if dedup == nil {
		dedup = utils.NewDeduplicator()
	}
	if reporter == nil {
		reporter = &ConsoleReporter{}
	}
	return &Spider{
		Config:   cfg,
		Matcher:  m,
		FS:       fsys,
		Engine:   ex,
		Dedup:    dedup,
		Reporter: reporter,
		Stats:    &Stats{},
	}
}

// depth counts path separators below root.
func depth(root, p string) int {
	rel := strings.TrimPrefix(filepath.ToSlash(p), filepath.ToSlash(root))
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

// Walk extracts every eligible file under target. One bad file never
// stops the walk; only ctx cancellation does.
func (s *Spider) Walk(ctx context.Context, target string) {
	utils.LogInfo("Starting walk on: %s", target)

	sem := s.Semaphore
	if sem == nil {
		t := s.Config.Threads
		if t < 1 {
			t = 1
		}
		sem = make(chan struct{}, t)
	}

	var wg sync.WaitGroup

	err := s.FS.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			utils.LogWarning("Error accessing %s: %v", path, err)
			return nil // Continue walking
		}

		if d.IsDir() {
			if path == target {
				return nil
			}
			if s.Matcher.CheckExclude(path) {
				utils.LogDebug("Skipping excluded dir: %s", path)
				return fs.SkipDir
			}
			if s.Config.MaxDepth > 0 && depth(target, path) >= s.Config.MaxDepth {
				utils.LogDebug("Max depth reached at %s", path)
				return fs.SkipDir
			}
			return nil
		}

		if s.Matcher.CheckExclude(path) {
			utils.LogDebug("Skipping excluded file: %s", path)
			return nil
		}
		if !s.Matcher.CheckDir(path) || !s.Matcher.CheckExtension(d.Name()) {
			return nil
		}

		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			return ctx.Err()
		}
		go func(fPath string, fEntry fs.DirEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			s.process(ctx, fPath, fEntry)
		}(path, d)

		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		utils.LogError("Error walking %s: %v", target, err)
	}

	wg.Wait()
}

func (s *Spider) process(ctx context.Context, path string, d fs.DirEntry) {
	data, err := s.read(path)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			s.Stats.TooLarge.Add(1)
			utils.LogDebug("Skipping %s: %v", path, err)
			return
		}
		s.Stats.Failed.Add(1)
		utils.LogWarning("Failed to read %s: %v", path, err)
		return
	}

	hash, err := utils.HashReader(bytes.NewReader(data))
	if err != nil {
		s.Stats.Failed.Add(1)
		return
	}
	if first, dup := s.Dedup.Seen(hash, s.location(path)); dup {
		s.Stats.Duplicates.Add(1)
		utils.LogInfo("Duplicate of %s (Hash: %s), skipping: %s", first, hash[:8], path)
		return
	}

	doc, err := s.Engine.Extract(ctx, document.NewSourceFile(d.Name(), "", data))
	if errors.Is(err, engine.ErrUnsupportedFormat) {
		s.Stats.Unsupported.Add(1)
		utils.LogDebug("Skipping %s: %v", path, err)
		return
	}
	if err != nil {
		s.Stats.Failed.Add(1)
		utils.LogError("Extraction of %s failed: %v", path, err)
		return
	}

	if doc.Empty() {
		s.Stats.Empty.Add(1)
		if !s.Config.KeepEmpty {
			return
		}
	}

	reason, ok := s.match(d.Name(), doc.Content)
	if !ok {
		s.Stats.Unmatched.Add(1)
		return
	}

	rec := Record{
		Path:     path,
		Host:     s.Config.Host,
		Share:    s.Config.Share,
		Hash:     hash,
		Reason:   reason,
		Document: doc,
	}
	if s.Config.OutputDir != "" && !doc.Empty() {
		out, err := s.writeText(path, doc.Content)
		if err != nil {
			utils.LogError("Failed to write text for %s: %v", path, err)
		} else {
			rec.TextPath = out
		}
	}
	if !doc.Empty() {
		s.Stats.Extracted.Add(1)
	}
	s.Reporter.Report(rec)
}

// match applies the filename OR content search terms.
func (s *Spider) match(name, content string) (string, bool) {
	if !s.Matcher.HasTerms() {
		return "All", true
	}
	if s.Matcher.CheckFilenameRegex(name) {
		return "Filename", true
	}
	if len(s.Matcher.ContentRegex) > 0 {
		if ok, snippet := s.Matcher.CheckContent(content); ok {
			return "Content: " + snippet, true
		}
	}
	return "", false
}

var errTooLarge = errors.New("file exceeds size limit")

func (s *Spider) read(path string) ([]byte, error) {
	f, err := s.FS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	limit := s.Config.MaxFileSize
	if limit > 0 {
		if fi, err := f.Stat(); err == nil && fi.Size() > limit {
			return nil, fmt.Errorf("%w: %d > %d bytes", errTooLarge, fi.Size(), limit)
		}
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, limit)
		}
		return data, nil
	}
	return io.ReadAll(f)
}

func (s *Spider) location(path string) string {
	if s.Config.Host == "" {
		return path
	}
	return fmt.Sprintf(`\\%s\%s\%s`, s.Config.Host, s.Config.Share, path)
}

// writeText stores content as <name>.txt under OutputDir and returns the path.
func (s *Spider) writeText(path, content string) (string, error) {
	var destPath string
	if s.Config.Structured {
		// OutputDir/Host/Share/Path...
		safeHost := strings.ReplaceAll(s.Config.Host, ":", "")
		safeShare := strings.ReplaceAll(s.Config.Share, "\\", "")
		safeShare = strings.ReplaceAll(safeShare, "/", "")
		rel := strings.TrimLeft(filepath.ToSlash(path), "/")
		rel = strings.ReplaceAll(rel, ":", "")
		destPath = filepath.Join(s.Config.OutputDir, safeHost, safeShare, filepath.FromSlash(rel)) + ".txt"
	} else {
		safeName := strings.ReplaceAll(path, "\\", "_")
		safeName = strings.ReplaceAll(safeName, "/", "_")
		safeName = strings.ReplaceAll(safeName, ":", "")
		destPath = filepath.Join(s.Config.OutputDir, safeName) + ".txt"
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, []byte(content), 0644); err != nil {
		os.Remove(destPath) // Cleanup partial
		return "", err
	}
	utils.LogExtracted("Text written to: %s", destPath)
	return destPath, nil
}
