package config

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
	"github.com/cognicore/cedar/pkg/cedar/store"
	"github.com/cognicore/cedar/pkg/cedar/store/memstore"
	"github.com/cognicore/cedar/pkg/cedar/store/sqlite"
)

// Loader loads every configured seed source and builds the stores.
type Loader struct {
	Builtin    bool
	SQLitePath string
	SeedPath   string
	RulesPath  string
}

// Components holds the loaded stores.
type Components struct {
	KB         *kb.KnowledgeBase
	Similarity *similarity.Relation
}

// NewLoader returns a Loader for cfg's sources.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		Builtin:    cfg.Builtin,
		SQLitePath: cfg.SQLite,
		SeedPath:   cfg.Seed,
		RulesPath:  cfg.Rules,
	}
}

// Load applies the sources in order: builtin, SQLite, YAML seed, rules.
// Later sources may reuse earlier sorts and overwrite earlier similarities;
// a repeated instance id is an error.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	if !l.Builtin && l.SQLitePath == "" && l.SeedPath == "" && l.RulesPath == "" {
		return nil, errors.WithHint(
			errors.Wrap(internalerr.ErrInvalidConfig, "no seed sources configured"),
			"enable builtin or name a seed, sqlite or rules file",
		)
	}

	comp := &Components{
		KB:         kb.New(),
		Similarity: similarity.New(),
	}

	if l.Builtin {
		if err := applySource(ctx, memstore.Builtin(), comp); err != nil {
			return nil, errors.Wrap(err, "load builtin seed")
		}
	}

	if l.SQLitePath != "" {
		if _, err := os.Stat(l.SQLitePath); err != nil {
			return nil, errors.Wrap(err, "load sqlite seed")
		}
		src, err := sqlite.OpenSQLite(ctx, l.SQLitePath)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite seed")
		}
		if err := applySource(ctx, src, comp); err != nil {
			return nil, errors.Wrap(err, "load sqlite seed")
		}
	}

	if l.SeedPath != "" {
		if err := applySource(ctx, SeedFile{Path: l.SeedPath}, comp); err != nil {
			return nil, errors.Wrap(err, "load seed")
		}
	}

	// Rules only declare similarities, so they go last.
	if l.RulesPath != "" {
		data, err := os.ReadFile(l.RulesPath)
		if err != nil {
			return nil, errors.Wrap(err, "read rules")
		}
		if err := comp.Similarity.LoadRules(string(data)); err != nil {
			return nil, errors.Wrapf(err, "load rules %s", l.RulesPath)
		}
	}

	return comp, nil
}

func applySource(ctx context.Context, src store.Source, comp *Components) error {
	defer src.Close()

	seed, err := src.Load(ctx)
	if err != nil {
		return err
	}
	return store.Apply(seed, comp.KB, comp.Similarity)
}
