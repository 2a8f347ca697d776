package store

import (
	"fmt"
	"sort"
	"sync"

	"boardflow/internal/board"
	"boardflow/internal/rule"
)

// MemoryTaskStore is a map-backed TaskStore. It is the default composition
// root for tests and embedded use. All reads return clones so callers can
// never alias store-owned state.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*board.Task
}

// NewMemoryTaskStore creates an empty task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*board.Task)}
}

func (s *MemoryTaskStore) FindByID(id string) (*board.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *MemoryTaskStore) FindAll() ([]*board.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*board.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryTaskStore) FindBySectionID(sectionID string) ([]*board.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*board.Task
	for _, t := range s.tasks {
		if t.SectionID == sectionID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemoryTaskStore) FindByParentID(parentID string) ([]*board.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*board.Task
	for _, t := range s.tasks {
		if t.ParentID == parentID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryTaskStore) Create(t *board.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryTaskStore) Update(id string, patch TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	patch.Apply(t)
	return nil
}

func (s *MemoryTaskStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

// MemorySectionStore is a map-backed SectionStore. Put seeds sections; the
// engine contract itself is read-only.
type MemorySectionStore struct {
	mu       sync.RWMutex
	sections map[string]*board.Section
}

// NewMemorySectionStore creates an empty section store.
func NewMemorySectionStore() *MemorySectionStore {
	return &MemorySectionStore{sections: make(map[string]*board.Section)}
}

// Put inserts or replaces a section.
func (s *MemorySectionStore) Put(sec *board.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[sec.ID] = sec.Clone()
}

// Remove deletes a section. Used by hosts to model section deletion before
// running the broken-rule scan.
func (s *MemorySectionStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections, id)
}

func (s *MemorySectionStore) FindByID(id string) (*board.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sections[id]
	if !ok {
		return nil, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	return sec.Clone(), nil
}

func (s *MemorySectionStore) FindAll() ([]*board.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*board.Section, 0, len(s.sections))
	for _, sec := range s.sections {
		out = append(out, sec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryRuleStore is a map-backed RuleStore.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*rule.Rule
}

// NewMemoryRuleStore creates an empty rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]*rule.Rule)}
}

func (s *MemoryRuleStore) FindByID(id string) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *MemoryRuleStore) FindAll() ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	sortRules(out)
	return out, nil
}

func (s *MemoryRuleStore) FindByProjectID(projectID string) ([]*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*rule.Rule
	for _, r := range s.rules {
		if r.ProjectID == projectID {
			out = append(out, r.Clone())
		}
	}
	sortRules(out)
	return out, nil
}

func (s *MemoryRuleStore) Create(r *rule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.ID]; exists {
		return fmt.Errorf("rule %s already exists", r.ID)
	}
	s.rules[r.ID] = r.Clone()
	return nil
}

func (s *MemoryRuleStore) Update(id string, patch RulePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	patch.Apply(r)
	return nil
}

// sortRules orders by display order, then id for a stable tiebreak.
func sortRules(rules []*rule.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Order != rules[j].Order {
			return rules[i].Order < rules[j].Order
		}
		return rules[i].ID < rules[j].ID
	})
}
