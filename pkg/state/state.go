// Package state persists which batch targets finished, so an interrupted
// run can resume without extracting them again.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"docextract/pkg/utils"
)

type State struct {
	CompletedTargets map[string]time.Time `json:"completed_targets"`
}

type Manager struct {
	path  string
	state State
	mu    sync.Mutex
}

func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path: path,
		state: State{
			CompletedTargets: make(map[string]time.Time),
		},
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if err := json.Unmarshal(content, &m.state); err != nil {
		utils.LogError("Failed to parse state file %s: %v. Starting fresh.", path, err)
	}
	if m.state.CompletedTargets == nil {
		m.state.CompletedTargets = make(map[string]time.Time)
	}
	return m, nil
}

func (m *Manager) IsCompleted(target string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state.CompletedTargets[target]
	return ok
}

// MarkCompleted records target and rewrites the state file.
func (m *Manager) MarkCompleted(target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.CompletedTargets[target] = time.Now().UTC()
	return m.save()
}

// Completed lists finished targets, sorted.
func (m *Manager) Completed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.state.CompletedTargets))
	for t := range m.state.CompletedTargets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// save must be called with mu held. The file is replaced atomically.
func (m *Manager) save() error {
	content, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
