package kb

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
)

// Feature is one named attribute of an instance.
type Feature struct {
	Key   string
	Value Value
}

// Features is an ordered, immutable mapping from feature name to value.
// Keys are unique; iteration follows the order the features were given in.
type Features struct {
	entries []Feature
	index   map[string]int
}

// NewFeatures builds a Features from fs, preserving their order. Duplicate or
// empty keys and invalid values are rejected with ErrInvalidInput.
func NewFeatures(fs ...Feature) (Features, error) {
	if len(fs) == 0 {
		return Features{}, nil
	}

	out := Features{
		entries: make([]Feature, 0, len(fs)),
		index:   make(map[string]int, len(fs)),
	}
	for _, f := range fs {
		if f.Key == "" {
			return Features{}, errors.Wrap(internalerr.ErrInvalidInput, "empty feature key")
		}
		if f.Value.Kind() == KindInvalid {
			return Features{}, errors.Wrapf(internalerr.ErrInvalidInput, "feature %q: missing value", f.Key)
		}
		if _, dup := out.index[f.Key]; dup {
			return Features{}, errors.Wrapf(internalerr.ErrInvalidInput, "duplicate feature key %q", f.Key)
		}
		out.index[f.Key] = len(out.entries)
		out.entries = append(out.entries, f)
	}
	return out, nil
}

// MustFeatures is like NewFeatures but panics on error. Intended for seed
// tables and tests.
func MustFeatures(fs ...Feature) Features {
	out, err := NewFeatures(fs...)
	if err != nil {
		panic(err)
	}
	return out
}

// Get returns the value stored under key.
func (f Features) Get(key string) (Value, bool) {
	i, ok := f.index[key]
	if !ok {
		return Value{}, false
	}
	return f.entries[i].Value, true
}

// Len returns the number of features.
func (f Features) Len() int { return len(f.entries) }

// All yields key/value pairs in stored order.
func (f Features) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, e := range f.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Slice returns a copy of the features in stored order.
func (f Features) Slice() []Feature {
	out := make([]Feature, len(f.entries))
	copy(out, f.entries)
	return out
}
