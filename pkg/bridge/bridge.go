// Package bridge converts legacy binary office formats into modern
// containers through a headless office converter process.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"docextract/pkg/utils"
)

// Converter turns data in format from into format to. Any failure is an
// *UnavailableError; callers fall through to their next attempt.
type Converter interface {
	Convert(ctx context.Context, data []byte, from, to string) ([]byte, error)
}

// UnavailableError means the bridge could not serve this input: the tool
// is missing, timed out, exited non-zero or produced no output.
type UnavailableError struct {
	From, To string
	Reason   string
	Err      error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("bridge %s->%s unavailable: %s", e.From, e.To, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ErrUnavailable matches every *UnavailableError through errors.Is.
var ErrUnavailable = errors.New("bridge unavailable")

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Office drives LibreOffice (or any binary accepting the same flags).
type Office struct {
	// Binary is the converter executable. Empty means "soffice".
	Binary string
	// Timeout bounds a single conversion. Zero means 2 minutes.
	Timeout time.Duration
	// TempRoot is where per-call scratch directories are created.
	TempRoot string
}

// NewOffice returns an Office converter with the given binary and timeout.
func NewOffice(binary string, timeout time.Duration, tempRoot string) *Office {
	return &Office{Binary: binary, Timeout: timeout, TempRoot: tempRoot}
}

func (o *Office) binary() string {
	if o.Binary == "" {
		return "soffice"
	}
	return o.Binary
}

func (o *Office) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 2 * time.Minute
	}
	return o.Timeout
}

// Convert writes data as input.<from> into a fresh scratch directory, runs
// a headless conversion to <to> and reads back input.<to>. The directory
// is removed on every return path.
func (o *Office) Convert(ctx context.Context, data []byte, from, to string) ([]byte, error) {
	from = strings.TrimLeft(strings.ToLower(from), ".")
	to = strings.TrimLeft(strings.ToLower(to), ".")
	unavailable := func(reason string, err error) error {
		return &UnavailableError{From: from, To: to, Reason: reason, Err: err}
	}

	scratch, err := NewScratch(o.TempRoot, "docextract-bridge-*")
	if err != nil {
		return nil, unavailable("scratch", err)
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			utils.LogWarning("Failed to remove bridge scratch dir: %v", err)
		}
	}()

	input, err := scratch.WriteFile("input."+from, data)
	if err != nil {
		return nil, unavailable("write input", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	// A private profile keeps concurrent soffice processes from fighting
	// over the shared user installation lock.
	profile := (&url.URL{Scheme: "file", Path: filepath.ToSlash(scratch.Path("profile"))}).String()
	cmd := exec.CommandContext(ctx, o.binary(),
		"--headless",
		"--norestore",
		"-env:UserInstallation="+profile,
		"--convert-to", to,
		"--outdir", scratch.Dir(),
		input,
	)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	utils.LogDebug("Bridge converting %s -> %s (%d bytes)", from, to, len(data))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, unavailable("timed out or canceled", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, unavailable("converter failed", err)
	}

	out, err := scratch.ReadFile("input." + to)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, unavailable("no output file", nil)
		}
		return nil, unavailable("read output", err)
	}
	return out, nil
}
