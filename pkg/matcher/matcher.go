package matcher

import (
	"path"
	"regexp"
	"strings"
)

type MatchConfig struct {
	Filenames  []string
	Extensions []string
	Content    []string
	Dirnames   []string
	Excludes   []string // extra literal path fragments to skip
	NoDefaults bool     // drop DefaultExcludes
}

// Matcher decides which files a batch run extracts and which extracted
// documents it reports.
type Matcher struct {
	FilenameRegex []*regexp.Regexp
	ContentRegex  []*regexp.Regexp
	DirnameRegex  []*regexp.Regexp
	ExcludeRegex  []*regexp.Regexp
	Extensions    map[string]bool
	Config        MatchConfig
}

func compileAll(patterns []string, literal bool) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		if literal {
			p = regexp.QuoteMeta(p)
		}
		re, err := regexp.Compile("(?i)" + p) // Case insensitive by default
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func NewMatcher(config MatchConfig) (*Matcher, error) {
	m := &Matcher{
		Config:     config,
		Extensions: make(map[string]bool),
	}

	var err error
	if m.FilenameRegex, err = compileAll(config.Filenames, false); err != nil {
		return nil, err
	}
	if m.ContentRegex, err = compileAll(config.Content, false); err != nil {
		return nil, err
	}
	if m.DirnameRegex, err = compileAll(config.Dirnames, false); err != nil {
		return nil, err
	}

	excludes := config.Excludes
	if !config.NoDefaults {
		excludes = append(append([]string(nil), DefaultExcludes...), excludes...)
	}
	if m.ExcludeRegex, err = compileAll(excludes, true); err != nil {
		return nil, err
	}

	for _, e := range config.Extensions {
		ext := strings.ToLower(strings.TrimSpace(e))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.Extensions[ext] = true
	}

	return m, nil
}

// HasTerms reports whether any filename or content search term is set.
// Without terms every extracted document is reported.
func (m *Matcher) HasTerms() bool {
	return len(m.FilenameRegex) > 0 || len(m.ContentRegex) > 0
}

// CheckExtension returns true if file extension matches allowlist (or if list is empty)
func (m *Matcher) CheckExtension(filename string) bool {
	if len(m.Extensions) == 0 {
		return true
	}

	ext := ""
	if idx := strings.LastIndex(filename, "."); idx != -1 {
		ext = strings.ToLower(filename[idx:])
	}

	return m.Extensions[ext]
}

// CheckFilenameRegex returns true if filename matches any of the regex patterns
func (m *Matcher) CheckFilenameRegex(filename string) bool {
	for _, re := range m.FilenameRegex {
		if re.MatchString(filename) {
			return true
		}
	}
	return false
}

// CheckContent returns true if content matches regex, and the matching line (snippet)
func (m *Matcher) CheckContent(text string) (bool, string) {
	if len(m.ContentRegex) == 0 {
		return true, "" // No content filter
	}

	lines := strings.Split(text, "\n")
	for _, re := range m.ContentRegex {
		for _, line := range lines {
			if re.MatchString(line) {
				snippet := strings.TrimSpace(line)
				if len(snippet) > 80 {
					snippet = snippet[:80] + "..."
				}
				return true, snippet
			}
		}
	}
	return false, ""
}

// CheckExclude returns true if the path matches any exclusion pattern
func (m *Matcher) CheckExclude(p string) bool {
	for _, re := range m.ExcludeRegex {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// CheckDir returns true if the directory part of a file path matches one of
// the dirname patterns. No patterns allows everything.
func (m *Matcher) CheckDir(filePath string) bool {
	if len(m.DirnameRegex) == 0 {
		return true
	}
	dir := path.Dir(strings.ReplaceAll(filePath, "\\", "/"))
	for _, re := range m.DirnameRegex {
		if re.MatchString(dir) {
			return true
		}
	}
	return false
}
