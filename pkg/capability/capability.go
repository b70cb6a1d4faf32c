// Package capability detects optional external tools and lazily loaded
// parser handles, and caches the answers for the lifetime of the process.
package capability

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"docextract/pkg/utils"
)

// Tool names an optional external binary.
type Tool string

const (
	// Converter is the headless office converter used by the format bridge.
	Converter Tool = "soffice"
	// PDFRenderer is the poppler text renderer that gates high fidelity PDF partitioning.
	PDFRenderer Tool = "pdftotext"
	// PDFRaster rasterizes PDF pages for OCR.
	PDFRaster Tool = "pdftoppm"
	// OCR recognizes text in page images.
	OCR Tool = "tesseract"
)

// KnownTools lists every tool the engine may ask about.
var KnownTools = []Tool{Converter, PDFRenderer, PDFRaster, OCR}

// Prober answers whether a tool is usable right now.
type Prober interface {
	Probe(ctx context.Context, tool Tool) bool
}

// ExecProber launches a tool with a harmless flag and treats a zero exit as available.
type ExecProber struct {
	// Timeout bounds each probe. Zero means 10s.
	Timeout time.Duration
	// Binaries overrides the executable for a tool (e.g. an absolute soffice path).
	Binaries map[Tool]string
	// Args overrides the probe arguments for a tool.
	Args map[Tool][]string
}

var defaultProbeArgs = map[Tool][]string{
	Converter:   {"--version"},
	PDFRenderer: {"-v"},
	PDFRaster:   {"-v"},
	OCR:         {"--version"},
}

// Probe returns false for a missing binary, a non-zero exit, a timeout or any launch fault.
func (p *ExecProber) Probe(ctx context.Context, tool Tool) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bin := string(tool)
	if b, ok := p.Binaries[tool]; ok && b != "" {
		bin = b
	}
	args, ok := p.Args[tool]
	if !ok {
		args = defaultProbeArgs[tool]
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	if err := cmd.Run(); err != nil {
		utils.LogDebug("Probe %s (%s) failed: %v", tool, bin, err)
		return false
	}
	return true
}

type staticProber map[Tool]bool

func (s staticProber) Probe(_ context.Context, tool Tool) bool {
	return s[tool]
}

type library struct {
	once   sync.Once
	handle any
	err    error
}

// Capabilities is the process-wide capability cache. Each tool is probed at
// most once; concurrent first callers share a single probe.
type Capabilities struct {
	prober Prober
	group  singleflight.Group

	mu    sync.RWMutex
	tools map[Tool]bool

	libMu sync.Mutex
	libs  map[string]*library
}

// New returns an empty cache backed by p.
func New(p Prober) *Capabilities {
	return &Capabilities{
		prober: p,
		tools:  make(map[Tool]bool),
		libs:   make(map[string]*library),
	}
}

// Static returns a cache whose answers are fixed up front. Tools missing
// from avail are unavailable.
func Static(avail map[Tool]bool) *Capabilities {
	c := New(staticProber(avail))
	for t, ok := range avail {
		c.tools[t] = ok
	}
	return c
}

func (c *Capabilities) cached(tool Tool) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ok, seen := c.tools[tool]
	return ok, seen
}

// Has reports whether tool is available, probing it on first use.
func (c *Capabilities) Has(ctx context.Context, tool Tool) bool {
	if ok, seen := c.cached(tool); seen {
		return ok
	}
	v, _, _ := c.group.Do(string(tool), func() (interface{}, error) {
		// A caller that lost the race to an earlier flight lands here after
		// the result was stored.
		if ok, seen := c.cached(tool); seen {
			return ok, nil
		}
		ok := c.prober.Probe(context.WithoutCancel(ctx), tool)
		c.mu.Lock()
		c.tools[tool] = ok
		c.mu.Unlock()
		utils.LogDebug("Capability %s available=%t", tool, ok)
		return ok, nil
	})
	return v.(bool)
}

// Snapshot returns the tools probed so far.
func (c *Capabilities) Snapshot() map[Tool]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Tool]bool, len(c.tools))
	for t, ok := range c.tools {
		out[t] = ok
	}
	return out
}

// ProbeAll probes every known tool and returns them sorted by name.
func (c *Capabilities) ProbeAll(ctx context.Context) []Tool {
	tools := append([]Tool(nil), KnownTools...)
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	for _, t := range tools {
		c.Has(ctx, t)
	}
	return tools
}

// Library returns a lazily loaded handle. load runs at most once per name;
// its result, including an error or a recovered panic, is cached.
func (c *Capabilities) Library(name string, load func() (any, error)) (any, error) {
	c.libMu.Lock()
	lib, ok := c.libs[name]
	if !ok {
		lib = &library{}
		c.libs[name] = lib
	}
	c.libMu.Unlock()

	lib.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				lib.err = fmt.Errorf("load %s: panic: %v", name, r)
			}
		}()
		lib.handle, lib.err = load()
		if lib.err != nil {
			utils.LogWarning("Optional library %s unavailable: %v", name, lib.err)
		}
	})
	return lib.handle, lib.err
}
