package config

import (
	"context"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
	"github.com/cognicore/cedar/pkg/cedar/store"
)

// seedFile is the YAML seed layout:
//
//	sorts: [slasher, horror, thriller]
//	instances:
//	  - id: halloween
//	    sort: slasher
//	    features:
//	      title: Halloween
//	      year: 1979
//	similarities:
//	  - {a: horror, b: thriller, degree: 0.5}
//
// Features keep their file order. YAML ints and floats become numbers;
// every other scalar is a string.
type seedFile struct {
	Sorts     []string `yaml:"sorts"`
	Instances []struct {
		ID       string    `yaml:"id"`
		Sort     string    `yaml:"sort"`
		Features yaml.Node `yaml:"features"`
	} `yaml:"instances"`
	Similarities []struct {
		A      string   `yaml:"a"`
		B      string   `yaml:"b"`
		Degree *float64 `yaml:"degree"`
	} `yaml:"similarities"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (store.Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return store.Seed{}, errors.Wrapf(internalerr.ErrInvalidInput, "parse seed: %v", err)
	}

	seed := store.Seed{Sorts: f.Sorts}
	for i, in := range f.Instances {
		fs, err := decodeFeatures(&in.Features)
		if err != nil {
			return store.Seed{}, errors.Wrapf(err, "instance %d (%q)", i, in.ID)
		}
		seed.Instances = append(seed.Instances, kb.Instance{ID: in.ID, Sort: in.Sort, Features: fs})
	}
	for i, s := range f.Similarities {
		if s.Degree == nil {
			return store.Seed{}, errors.Wrapf(internalerr.ErrInvalidInput, "similarity %d (%q~%q): missing degree", i, s.A, s.B)
		}
		seed.Similarities = append(seed.Similarities, similarity.Pair{A: s.A, B: s.B, Degree: *s.Degree})
	}
	return seed, nil
}

func decodeFeatures(node *yaml.Node) (kb.Features, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return kb.Features{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return kb.Features{}, errors.Wrapf(internalerr.ErrInvalidInput, "line %d: features must be a mapping", node.Line)
	}

	fs := make([]kb.Feature, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		v, err := decodeValue(val)
		if err != nil {
			return kb.Features{}, errors.Wrapf(err, "feature %q", key.Value)
		}
		fs = append(fs, kb.Feature{Key: key.Value, Value: v})
	}
	return kb.NewFeatures(fs...)
}

func decodeValue(node *yaml.Node) (kb.Value, error) {
	if node.Kind != yaml.ScalarNode {
		return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "line %d: value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		n, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "line %d: number %q", node.Line, node.Value)
		}
		return kb.Number(n), nil
	case "!!null":
		return kb.Value{}, errors.Wrapf(internalerr.ErrInvalidInput, "line %d: null value", node.Line)
	default:
		return kb.String(node.Value), nil
	}
}

// SeedFile is a store.Source reading a YAML seed file.
type SeedFile struct {
	Path string
}

var _ store.Source = SeedFile{}

// Load implements store.Source.
func (s SeedFile) Load(ctx context.Context) (store.Seed, error) {
	if err := ctx.Err(); err != nil {
		return store.Seed{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return store.Seed{}, errors.Wrap(err, "read seed")
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return store.Seed{}, errors.Wrapf(err, "seed %s", s.Path)
	}
	return seed, nil
}

// Close implements store.Source.
func (SeedFile) Close() error { return nil }
