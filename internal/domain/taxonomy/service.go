// Package taxonomy loads the pest and disease classification standard and
// serves in-memory lookups by id, model label, and Chinese name.
package taxonomy

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"smartagri-server-go/internal/platform/errors"
)

// Service answers taxonomy lookups from indexes built at load time.
// Lookups use comma-ok returns; absence is an expected outcome, not an error.
type Service struct {
	data    *Standard
	byID    map[int]*Entry
	byLabel map[string]*Entry
	byName  map[string]*Entry
}

// Load reads and indexes the taxonomy standard from path.
func Load(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindTaxonomy, "taxonomy.Load",
			fmt.Sprintf("read taxonomy file %s", path), err)
	}

	var std Standard
	if err := sonic.Unmarshal(data, &std); err != nil {
		return nil, errors.Wrap(errors.KindTaxonomy, "taxonomy.Load",
			fmt.Sprintf("parse taxonomy file %s", path), err)
	}
	if len(std.Taxonomy) == 0 {
		return nil, errors.New(errors.KindTaxonomy, "taxonomy.Load", "taxonomy file has no entries")
	}

	s := &Service{
		data:    &std,
		byID:    make(map[int]*Entry, len(std.Taxonomy)),
		byLabel: make(map[string]*Entry, len(std.Taxonomy)),
		byName:  make(map[string]*Entry, len(std.Taxonomy)),
	}
	for i := range std.Taxonomy {
		entry := &std.Taxonomy[i]
		s.byID[entry.ID] = entry
		s.byLabel[entry.ModelLabel] = entry
		s.byName[entry.ZhScientificName] = entry
	}
	return s, nil
}

// Metadata returns the standard's metadata block.
func (s *Service) Metadata() Metadata {
	return s.data.Metadata
}

// All returns every entry in file order.
func (s *Service) All() []Entry {
	return s.data.Taxonomy
}

// ByID looks up an entry by its identifier.
func (s *Service) ByID(id int) (*Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// ByModelLabel looks up an entry by the classifier's output label.
func (s *Service) ByModelLabel(label string) (*Entry, bool) {
	e, ok := s.byLabel[label]
	return e, ok
}

// ByName looks up an entry by its Chinese scientific name.
func (s *Service) ByName(name string) (*Entry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// SearchKeywords returns the retrieval keywords for an entry, empty when the
// entry has none or does not exist.
func (s *Service) SearchKeywords(id int) []string {
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	return e.SearchKeywords
}
