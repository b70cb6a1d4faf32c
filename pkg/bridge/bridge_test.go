package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeConverter = `#!/bin/sh
to=""; out=""; in=""
while [ $# -gt 0 ]; do
  case "$1" in
    --convert-to) to="$2"; shift 2;;
    --outdir) out="$2"; shift 2;;
    -*) shift;;
    *) in="$1"; shift;;
  esac
done
%s
base=$(basename "$in")
base="${base%%.*}"
printf 'converted:' > "$out/$base.$to"
cat "$in" >> "$out/$base.$to"
`

func writeConverter(t *testing.T, prelude string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "fake-soffice")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(fakeConverter, prelude)), 0755))
	return path
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories must be removed")
}

func TestConvertSuccess(t *testing.T) {
	root := t.TempDir()
	o := NewOffice(writeConverter(t, ""), 5*time.Second, root)

	out, err := o.Convert(context.Background(), []byte("legacy"), ".DOC", "docx")
	require.NoError(t, err)
	assert.Equal(t, "converted:legacy", string(out))
	assertEmptyDir(t, root)
}

func TestConvertFailures(t *testing.T) {
	cases := []struct {
		name    string
		prelude string
		timeout time.Duration
		binary  string
	}{
		{name: "non-zero exit", prelude: "echo broken >&2; exit 1"},
		{name: "no output file", prelude: "exit 0"},
		{name: "timeout", prelude: "exec sleep 10", timeout: 200 * time.Millisecond},
		{name: "missing binary", binary: "/nonexistent/soffice-for-tests"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			bin := tc.binary
			if bin == "" {
				bin = writeConverter(t, tc.prelude)
			}
			timeout := tc.timeout
			if timeout == 0 {
				timeout = 5 * time.Second
			}
			o := NewOffice(bin, timeout, root)

			out, err := o.Convert(context.Background(), []byte("legacy"), "ppt", "pptx")
			assert.Nil(t, out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))

			var ue *UnavailableError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "ppt", ue.From)
			assert.Equal(t, "pptx", ue.To)
			assertEmptyDir(t, root)
		})
	}
}

func TestConvertCanceledContext(t *testing.T) {
	root := t.TempDir()
	o := NewOffice(writeConverter(t, "exec sleep 10"), time.Minute, root)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := o.Convert(ctx, []byte("x"), "doc", "docx")
	require.ErrorIs(t, err, ErrUnavailable)
	assertEmptyDir(t, root)
}

func TestConcurrentConversionsUseDistinctDirs(t *testing.T) {
	root := t.TempDir()
	o := NewOffice(writeConverter(t, ""), 10*time.Second, root)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("file-%d", i)
			out, err := o.Convert(context.Background(), []byte(payload), "doc", "docx")
			assert.NoError(t, err)
			assert.Equal(t, "converted:"+payload, string(out))
		}(i)
	}
	wg.Wait()
	assertEmptyDir(t, root)
}

func TestScratch(t *testing.T) {
	root := t.TempDir()
	s, err := NewScratch(root, "scratch-*")
	require.NoError(t, err)

	p, err := s.WriteFile("a.txt", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, s.Path("a.txt"), p)

	b, err := s.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(b))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assertEmptyDir(t, root)
}
