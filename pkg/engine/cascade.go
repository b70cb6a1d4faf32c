package engine

import (
	"context"
	"fmt"
	"strings"

	"docextract/pkg/capability"
	"docextract/pkg/document"
	"docextract/pkg/utils"
)

// Attempt is one extraction method in a pipeline. Run returning an error
// or empty text hands over to the next attempt.
type Attempt struct {
	Name     string
	Requires []capability.Tool
	Run      func(ctx context.Context, src document.SourceFile) (string, error)
}

// Cascade runs attempts in order and returns the first text that is
// non-empty after trimming. Attempts whose required tools are missing are
// skipped. Errors and panics are logged and recorded, never returned.
// An exhausted or canceled cascade yields "".
func Cascade(ctx context.Context, caps *capability.Capabilities, attempts []Attempt, src document.SourceFile) (string, document.Provenance) {
	var prov document.Provenance
	record := func(name, status string, err error) {
		r := document.AttemptReport{Name: name, Status: status}
		if err != nil {
			r.Error = err.Error()
		}
		prov.Attempts = append(prov.Attempts, r)
	}

	for _, a := range attempts {
		if ctx.Err() != nil {
			prov.Canceled = true
			utils.LogWarning("%s: extraction canceled before %s", src.Name, a.Name)
			return "", prov
		}

		if tool, ok := missingTool(ctx, caps, a.Requires); !ok {
			utils.LogDebug("%s: skipping %s, %s not available", src.Name, a.Name, tool)
			record(a.Name, document.StatusSkipped, fmt.Errorf("%s not available", tool))
			continue
		}

		text, err := run(ctx, a, src)
		if err != nil {
			utils.LogWarning("%s: %v", src.Name, err)
			record(a.Name, document.StatusFailed, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			utils.LogDebug("%s: %s produced no text", src.Name, a.Name)
			record(a.Name, document.StatusEmpty, nil)
			continue
		}

		record(a.Name, document.StatusOK, nil)
		prov.Attempt = a.Name
		return text, prov
	}

	if ctx.Err() != nil {
		prov.Canceled = true
	}
	return "", prov
}

func missingTool(ctx context.Context, caps *capability.Capabilities, tools []capability.Tool) (capability.Tool, bool) {
	for _, t := range tools {
		if caps == nil || !caps.Has(ctx, t) {
			return t, false
		}
	}
	return "", true
}

// run calls the attempt, turning a panic into an *AttemptError.
func run(ctx context.Context, a Attempt, src document.SourceFile) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &AttemptError{Attempt: a.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	text, err = a.Run(ctx, src)
	if err != nil {
		return "", &AttemptError{Attempt: a.Name, Err: err}
	}
	return text, nil
}
