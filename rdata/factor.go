package rdata

import (
	"github.com/pkg/errors"

	"github.com/chazu/rjs/wire"
)

// FactorStore holds 1-based level codes plus the level names they index.
// A struct-only factor store keeps the level count and ordering but no codes.
type FactorStore struct {
	Codes   []int32
	Levels  []string
	Ordered bool

	structOnly bool
	numLevels  int
}

func NewFactorStore(codes []int32, levels []string, ordered bool) *FactorStore {
	return &FactorStore{Codes: codes, Levels: levels, Ordered: ordered}
}

// StructFactorStore returns a placeholder describing a factor with n levels.
func StructFactorStore(ordered bool, n int) *FactorStore {
	return &FactorStore{Ordered: ordered, structOnly: true, numLevels: n}
}

func (s *FactorStore) StoreType() StoreType { return FactorType }
func (s *FactorStore) Len() int             { return len(s.Codes) }
func (s *FactorStore) IsNA(i int) bool      { return s.Codes[i] == wire.NAInt32 }
func (s *FactorStore) StructOnly() bool     { return s.structOnly }

// LevelCount returns the number of levels, also for struct-only stores.
func (s *FactorStore) LevelCount() int {
	if s.structOnly {
		return s.numLevels
	}
	return len(s.Levels)
}

// Level returns the level name of element i.
func (s *FactorStore) Level(i int) (string, bool) {
	c := s.Codes[i]
	if c == wire.NAInt32 || c < 1 || int(c) > len(s.Levels) {
		return "", false
	}
	return s.Levels[c-1], true
}

func (s *FactorStore) InsertNA(i int) { s.Codes = insertAt(s.Codes, i, wire.NAInt32) }
func (s *FactorStore) Remove(i int)   { s.Codes = removeAt(s.Codes, i) }

func (s *FactorStore) levelIndex(name string) int {
	for i, l := range s.Levels {
		if l == name {
			return i
		}
	}
	return -1
}

// AddLevel appends a new level.
func (s *FactorStore) AddLevel(name string) error {
	return s.InsertLevel(len(s.Levels), name)
}

// InsertLevel inserts a level at position (0-based); codes referring to
// levels at or after the position move up by one.
func (s *FactorStore) InsertLevel(position int, name string) error {
	if position < 0 || position > len(s.Levels) {
		return errors.Errorf("level position %d out of range", position)
	}
	if s.levelIndex(name) >= 0 {
		return errors.Errorf("level %q already exists", name)
	}
	s.Levels = insertAt(s.Levels, position, name)
	for i, c := range s.Codes {
		if c != wire.NAInt32 && int(c) > position {
			s.Codes[i] = c + 1
		}
	}
	return nil
}

// RenameLevel changes a level name; codes are unaffected.
func (s *FactorStore) RenameLevel(oldName, newName string) error {
	idx := s.levelIndex(oldName)
	if idx < 0 {
		return errors.Errorf("level %q not found", oldName)
	}
	if oldName != newName && s.levelIndex(newName) >= 0 {
		return errors.Errorf("level %q already exists", newName)
	}
	s.Levels[idx] = newName
	return nil
}

// RemoveLevel drops a level. Elements coded with it become NA and codes of
// later levels move down by one.
func (s *FactorStore) RemoveLevel(name string) error {
	idx := s.levelIndex(name)
	if idx < 0 {
		return errors.Errorf("level %q not found", name)
	}
	code := int32(idx + 1)
	s.Levels = removeAt(s.Levels, idx)
	for i, c := range s.Codes {
		switch {
		case c == wire.NAInt32:
		case c == code:
			s.Codes[i] = wire.NAInt32
		case c > code:
			s.Codes[i] = c - 1
		}
	}
	return nil
}
