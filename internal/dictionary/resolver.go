package dictionary

import (
	"errors"
	"fmt"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/rs/zerolog/log"
)

// Store is the persistence handle the Resolver needs: save/restore a
// record under a well-known integer key. *spool.Spool satisfies this.
type Store interface {
	Save(key uint64, v any) error
	Restore(key uint64, out any) (bool, error)
}

// record is the persisted shape of a Dictionary under Store key
// DictionaryKey — it must be exported-field so msgpack can round-trip it.
type record struct {
	Entries map[string]model.Model
	Hash    string
}

// ErrRefreshRequired is returned when the server's expected dictionary
// hash does not match the dictionary the Resolver holds. The caller must
// send the DICO:REQUEST refresh notice plus an end marker and abort the
// job.
var ErrRefreshRequired = errors.New("dictionary: hash mismatch, refresh required")

// ServerOptions carries the server-supplied dictionary fields from the
// job's prolog response.
type ServerOptions struct {
	Dico     map[string]model.Model // optional server-provided content
	DicoHash string                 // optional expected hash
}

// dictionaryKey mirrors spool.DictionaryKey (= 999999), the well-known
// key the Spool reserves for the persisted Dictionary. Kept as a local
// constant rather than an import to avoid a dependency from this package
// on the storage layer's package.
const dictionaryKey = 999999

// Resolve implements the dictionary negotiation procedure: use the
// server-supplied dictionary if present, else the cached one, else the
// built-in fallback, then verify against any expected hash.
func Resolve(opts ServerOptions, store Store) (*Dictionary, error) {
	var dict *Dictionary

	if opts.Dico != nil {
		dict = New(opts.Dico, ExactMatcher{})
		if err := store.Save(dictionaryKey, record{Entries: opts.Dico, Hash: dict.Hash()}); err != nil {
			log.Error().Err(err).Msg("failed to persist server-supplied dictionary")
		}
	} else {
		var rec record
		ok, err := store.Restore(dictionaryKey, &rec)
		if err != nil {
			log.Error().Err(err).Msg("failed to restore cached dictionary")
		} else if ok {
			dict = New(rec.Entries, ExactMatcher{})
		}
	}

	if dict == nil {
		dict = Builtin()
	}

	if opts.DicoHash != "" && opts.DicoHash != dict.Hash() {
		return dict, fmt.Errorf("%w: have %s want %s", ErrRefreshRequired, dict.Hash(), opts.DicoHash)
	}

	return dict, nil
}
