// Package dictionary resolves which model dictionary is in force for a
// job (server-supplied, cached, or built-in) and exposes the
// description-to-Model classification lookup.
package dictionary

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/fusioninventory/netdiscovery/internal/model"
)

// Matcher decides whether a system description matches a dictionary
// entry's pattern. The exact pattern language is a collaborator concern
// Dictionary only depends on this interface, not a concrete matching
// rule.
type Matcher interface {
	Match(pattern, description string) bool
}

// ExactMatcher matches a description only on byte-for-byte equality with
// the pattern. It is the simplest matcher that satisfies "exact or
// pattern match" without inventing an unspecified pattern language.
type ExactMatcher struct{}

func (ExactMatcher) Match(pattern, description string) bool { return pattern == description }

// Dictionary maps system-description patterns to Models, plus a content
// hash identifying this dictionary's contents.
type Dictionary struct {
	entries map[string]model.Model
	hash    string
	matcher Matcher
}

// New builds a Dictionary from a pattern->Model mapping, computing its
// content hash deterministically from every pattern and its Model
// fields, taken in sorted pattern order.
func New(entries map[string]model.Model, matcher Matcher) *Dictionary {
	if matcher == nil {
		matcher = ExactMatcher{}
	}
	copied := make(map[string]model.Model, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Dictionary{entries: copied, hash: hashEntries(copied), matcher: matcher}
}

// Hash returns the dictionary's content identity.
func (d *Dictionary) Hash() string { return d.hash }

// Classify looks up the Model matching description, if any.
func (d *Dictionary) Classify(description string) (model.Model, bool) {
	if description == "" {
		return model.Model{}, false
	}
	for pattern, m := range d.entries {
		if d.matcher.Match(pattern, description) {
			return m, true
		}
	}
	return model.Model{}, false
}

func hashEntries(entries map[string]model.Model) string {
	patterns := make([]string, 0, len(entries))
	for p := range entries {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	h := sha256.New()
	for _, p := range patterns {
		m := entries[p]
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(m.ModelSNMP))
		h.Write([]byte{0})
		h.Write([]byte(m.Type))
		h.Write([]byte{0})
		h.Write([]byte(m.Serial))
		h.Write([]byte{0})
		h.Write([]byte(m.MAC))
		h.Write([]byte{0})
		h.Write([]byte(m.MACDyn))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Builtin returns the fallback dictionary used when the server supplies
// nothing and no cache exists. It has no entries, so it classifies no
// description.
func Builtin() *Dictionary {
	return New(map[string]model.Model{}, ExactMatcher{})
}
