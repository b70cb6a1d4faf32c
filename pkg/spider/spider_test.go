package spider_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/testdoc"
	"docextract/pkg/capability"
	"docextract/pkg/engine"
	"docextract/pkg/matcher"
	"docextract/pkg/spider"
	"docextract/pkg/utils"
)

type memoryReporter struct {
	mu      sync.Mutex
	records []spider.Record
}

func (m *memoryReporter) Report(rec spider.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func (m *memoryReporter) Close() {}

func (m *memoryReporter) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		out = append(out, filepath.Base(r.Path))
	}
	sort.Strings(out)
	return out
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func newSpider(t *testing.T, cfg spider.Config, mc matcher.MatchConfig) (*spider.Spider, *memoryReporter) {
	t.Helper()
	m, err := matcher.NewMatcher(mc)
	require.NoError(t, err)
	eng := engine.New(engine.Options{Capabilities: capability.Static(nil)})
	rep := &memoryReporter{}
	return spider.NewSpider(cfg, m, &spider.LocalFS{}, eng, utils.NewDeduplicator(), rep), rep
}

func corpus(t *testing.T) string {
	root := t.TempDir()
	write(t, filepath.Join(root, "notes.txt"), []byte("the meeting password is hunter2"))
	write(t, filepath.Join(root, "copy.txt"), []byte("the meeting password is hunter2"))
	write(t, filepath.Join(root, "report.docx"), testdoc.Docx("# Report", "Numbers went up."))
	write(t, filepath.Join(root, "archive.xyz"), []byte("PK\x03\x04"))
	write(t, filepath.Join(root, "blank.txt"), []byte("  \n\t "))
	write(t, filepath.Join(root, "big.txt"), []byte(strings.Repeat("x", 10000)))
	return root
}

func TestWalkExtractsEverything(t *testing.T) {
	root := corpus(t)
	out := t.TempDir()

	s, rep := newSpider(t, spider.Config{Threads: 1, MaxFileSize: 8192, OutputDir: out}, matcher.MatchConfig{})
	s.Walk(context.Background(), root)

	names := rep.names()
	require.Len(t, names, 2)
	assert.Contains(t, names, "report.docx")
	assert.Contains(t, []string{"copy.txt", "notes.txt"}, names[0])

	assert.EqualValues(t, 2, s.Stats.Extracted.Load())
	assert.EqualValues(t, 1, s.Stats.Duplicates.Load())
	assert.EqualValues(t, 1, s.Stats.Unsupported.Load())
	assert.EqualValues(t, 1, s.Stats.TooLarge.Load())
	assert.EqualValues(t, 1, s.Stats.Empty.Load())
	assert.EqualValues(t, 0, s.Stats.Failed.Load())

	for _, r := range rep.records {
		assert.Equal(t, "All", r.Reason)
		assert.Len(t, r.Hash, 64)
		require.NotEmpty(t, r.TextPath)
		text, err := os.ReadFile(r.TextPath)
		require.NoError(t, err)
		assert.Equal(t, r.Document.Content, string(text))
		if filepath.Base(r.Path) == "report.docx" {
			assert.Equal(t, "Report\n\nNumbers went up.", r.Document.Content)
			assert.Equal(t, "word", r.Document.Provenance.Family)
		}
	}

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWalkKeepEmpty(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "blank.txt"), []byte(" "))

	s, rep := newSpider(t, spider.Config{Threads: 2, KeepEmpty: true}, matcher.MatchConfig{})
	s.Walk(context.Background(), root)

	assert.Equal(t, []string{"blank.txt"}, rep.names())
	assert.EqualValues(t, 0, s.Stats.Extracted.Load())
}

func TestWalkSearchTerms(t *testing.T) {
	root := corpus(t)

	s, rep := newSpider(t, spider.Config{Threads: 3}, matcher.MatchConfig{Content: []string{`password\s+is`}})
	s.Walk(context.Background(), root)
	require.Len(t, rep.records, 1)
	assert.Equal(t, "Content: the meeting password is hunter2", rep.records[0].Reason)

	s, rep = newSpider(t, spider.Config{Threads: 3}, matcher.MatchConfig{
		Filenames: []string{`^report\.`},
		Content:   []string{`nothing matches this`},
	})
	s.Walk(context.Background(), root)
	assert.Equal(t, []string{"report.docx"}, rep.names())
	assert.Equal(t, "Filename", rep.records[0].Reason)
	assert.EqualValues(t, 2, s.Stats.Unmatched.Load())
}

func TestWalkFilters(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "top.txt"), []byte("top"))
	write(t, filepath.Join(root, "a", "one.md"), []byte("one"))
	write(t, filepath.Join(root, "a", "b", "two.txt"), []byte("two"))
	write(t, filepath.Join(root, "node_modules", "pkg.txt"), []byte("skip"))
	write(t, filepath.Join(root, "a", "~$lock.txt"), []byte("lock"))

	s, rep := newSpider(t, spider.Config{Threads: 2, MaxDepth: 2}, matcher.MatchConfig{})
	s.Walk(context.Background(), root)
	assert.Equal(t, []string{"one.md", "top.txt"}, rep.names())

	s, rep = newSpider(t, spider.Config{Threads: 2}, matcher.MatchConfig{Extensions: []string{"txt"}})
	s.Walk(context.Background(), root)
	assert.Equal(t, []string{"top.txt", "two.txt"}, rep.names())

	s, rep = newSpider(t, spider.Config{Threads: 2}, matcher.MatchConfig{Dirnames: []string{`/b$`}})
	s.Walk(context.Background(), root)
	assert.Equal(t, []string{"two.txt"}, rep.names())

	s, rep = newSpider(t, spider.Config{Threads: 2}, matcher.MatchConfig{NoDefaults: true})
	s.Walk(context.Background(), root)
	assert.Len(t, rep.names(), 5)
}

func TestWalkCanceled(t *testing.T) {
	root := corpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, rep := newSpider(t, spider.Config{Threads: 2}, matcher.MatchConfig{})
	s.Walk(ctx, root)
	assert.Empty(t, rep.records)
}

func TestWalkSharedDedup(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	write(t, filepath.Join(first, "a.txt"), []byte("same content"))
	write(t, filepath.Join(second, "b.txt"), []byte("same content"))

	m, err := matcher.NewMatcher(matcher.MatchConfig{})
	require.NoError(t, err)
	eng := engine.New(engine.Options{Capabilities: capability.Static(nil)})
	dedup := utils.NewDeduplicator()
	rep := &memoryReporter{}

	for _, root := range []string{first, second} {
		s := spider.NewSpider(spider.Config{Threads: 1}, m, &spider.LocalFS{}, eng, dedup, rep)
		s.Walk(context.Background(), root)
	}
	assert.Equal(t, []string{"a.txt"}, rep.names())
	assert.Equal(t, 1, dedup.Len())
}

func TestStructuredOutput(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	write(t, filepath.Join(root, "Users", "alice", "memo.txt"), []byte("hello"))

	s, rep := newSpider(t, spider.Config{
		Threads:    1,
		OutputDir:  out,
		Structured: true,
		Host:       "fileserver",
		Share:      "Data",
	}, matcher.MatchConfig{})
	s.Walk(context.Background(), root)

	require.Len(t, rep.records, 1)
	rec := rep.records[0]
	assert.Equal(t, "fileserver", rec.Host)
	assert.Equal(t, "Data", rec.Share)
	assert.True(t, strings.HasPrefix(rec.TextPath, filepath.Join(out, "fileserver", "Data")), rec.TextPath)
	assert.True(t, strings.HasSuffix(rec.TextPath, filepath.Join("Users", "alice", "memo.txt.txt")), rec.TextPath)
}

func TestJSONReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.jsonl")
	r, err := spider.NewJSONReporter(path)
	require.NoError(t, err)

	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), []byte("alpha"))
	write(t, filepath.Join(root, "b.csv"), []byte("k,v\n1,2\n"))

	m, err := matcher.NewMatcher(matcher.MatchConfig{})
	require.NoError(t, err)
	eng := engine.New(engine.Options{Capabilities: capability.Static(nil)})
	s := spider.NewSpider(spider.Config{Threads: 2}, m, &spider.LocalFS{}, eng, nil, spider.MultiReporter{r, &spider.ConsoleReporter{}})
	s.Walk(context.Background(), root)
	r.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	contents := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec struct {
			Path      string `json:"path"`
			Timestamp string `json:"timestamp"`
			Document  struct {
				Content  string `json:"content"`
				Metadata struct {
					Format string `json:"format"`
				} `json:"metadata"`
			} `json:"document"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.NotEmpty(t, rec.Timestamp)
		contents[rec.Document.Metadata.Format] = rec.Document.Content
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, map[string]string{"txt": "alpha", "csv": "k\tv\n1\t2"}, contents)
}
