package sqlite

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
	"github.com/cognicore/cedar/pkg/cedar/store"
)

const (
	kindString = "string"
	kindNumber = "number"
)

// Store is a store.Source backed by a SQLite seed database.
type Store struct {
	db *sql.DB
}

var _ store.Source = (*Store)(nil)

// OpenSQLite opens (creating if needed) a seed database with WAL mode and
// foreign keys enabled.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL")
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist. The pos columns record
// insertion order, which Load reproduces.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sorts (
	pos INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS instances (
	pos INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	sort TEXT NOT NULL,
	FOREIGN KEY(sort) REFERENCES sorts(name)
);

CREATE TABLE IF NOT EXISTS instance_features (
	instance_id TEXT NOT NULL,
	pos INTEGER NOT NULL,
	key TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('string', 'number')),
	text_value TEXT,
	num_value REAL,
	PRIMARY KEY(instance_id, key),
	FOREIGN KEY(instance_id) REFERENCES instances(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS similarities (
	pos INTEGER PRIMARY KEY AUTOINCREMENT,
	a TEXT NOT NULL,
	b TEXT NOT NULL,
	degree REAL NOT NULL,
	UNIQUE(a, b)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "init schema")
	}
	return nil
}

// Save appends seed to the database in one transaction. Sorts already present
// are kept, similarity pairs are overwritten, and an instance id that already
// exists fails the whole save with ErrDuplicateID.
func (s *Store) Save(ctx context.Context, seed store.Seed) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, name := range seed.Sorts {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO sorts(name) VALUES (?)`, name); err != nil {
			return errors.Wrapf(err, "insert sort %q", name)
		}
	}

	for _, inst := range seed.Instances {
		if err = insertInstance(ctx, tx, inst); err != nil {
			return err
		}
	}

	for _, p := range seed.Similarities {
		a, b := p.A, p.B
		if a > b {
			a, b = b, a
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO similarities(a, b, degree) VALUES (?, ?, ?)
ON CONFLICT(a, b) DO UPDATE SET degree = excluded.degree`, a, b, p.Degree)
		if err != nil {
			return errors.Wrapf(err, "insert similarity %q~%q", a, b)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func insertInstance(ctx context.Context, tx *sql.Tx, inst kb.Instance) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM instances WHERE id = ?`, inst.ID).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "check instance %q", inst.ID)
	}
	if exists > 0 {
		return errors.Wrapf(internalerr.ErrDuplicateID, "save instance %q", inst.ID)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO instances(id, sort) VALUES (?, ?)`, inst.ID, inst.Sort); err != nil {
		return errors.Wrapf(err, "insert instance %q", inst.ID)
	}

	for i, f := range inst.Features.Slice() {
		var (
			kind string
			text sql.NullString
			num  sql.NullFloat64
		)
		switch f.Value.Kind() {
		case kb.KindString:
			kind = kindString
			v, _ := f.Value.Str()
			text = sql.NullString{String: v, Valid: true}
		case kb.KindNumber:
			kind = kindNumber
			v, _ := f.Value.Num()
			num = sql.NullFloat64{Float64: v, Valid: true}
		default:
			return errors.Wrapf(internalerr.ErrInvalidInput, "instance %q feature %q: no value", inst.ID, f.Key)
		}

		_, err := tx.ExecContext(ctx, `
INSERT INTO instance_features(instance_id, pos, key, kind, text_value, num_value)
VALUES (?, ?, ?, ?, ?, ?)`, inst.ID, i, f.Key, kind, text, num)
		if err != nil {
			return errors.Wrapf(err, "insert feature %q.%q", inst.ID, f.Key)
		}
	}
	return nil
}

// Load reads the whole seed in insertion order.
func (s *Store) Load(ctx context.Context) (store.Seed, error) {
	var seed store.Seed

	sorts, err := s.loadSorts(ctx)
	if err != nil {
		return store.Seed{}, err
	}
	seed.Sorts = sorts

	features, err := s.loadFeatures(ctx)
	if err != nil {
		return store.Seed{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, sort FROM instances ORDER BY pos`)
	if err != nil {
		return store.Seed{}, errors.Wrap(err, "query instances")
	}
	defer rows.Close()

	for rows.Next() {
		var inst kb.Instance
		if err := rows.Scan(&inst.ID, &inst.Sort); err != nil {
			return store.Seed{}, errors.Wrap(err, "scan instance")
		}
		fs, err := kb.NewFeatures(features[inst.ID]...)
		if err != nil {
			return store.Seed{}, errors.Wrapf(err, "instance %q", inst.ID)
		}
		inst.Features = fs
		seed.Instances = append(seed.Instances, inst)
	}
	if err := rows.Err(); err != nil {
		return store.Seed{}, errors.Wrap(err, "iterate instances")
	}

	sims, err := s.loadSimilarities(ctx)
	if err != nil {
		return store.Seed{}, err
	}
	seed.Similarities = sims

	return seed, nil
}

func (s *Store) loadSorts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sorts ORDER BY pos`)
	if err != nil {
		return nil, errors.Wrap(err, "query sorts")
	}
	defer rows.Close()

	var sorts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan sort")
		}
		sorts = append(sorts, name)
	}
	return sorts, errors.Wrap(rows.Err(), "iterate sorts")
}

func (s *Store) loadFeatures(ctx context.Context) (map[string][]kb.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT instance_id, key, kind, text_value, num_value
FROM instance_features
ORDER BY instance_id, pos`)
	if err != nil {
		return nil, errors.Wrap(err, "query features")
	}
	defer rows.Close()

	out := make(map[string][]kb.Feature)
	for rows.Next() {
		var (
			id, key, kind string
			text          sql.NullString
			num           sql.NullFloat64
		)
		if err := rows.Scan(&id, &key, &kind, &text, &num); err != nil {
			return nil, errors.Wrap(err, "scan feature")
		}

		var v kb.Value
		switch kind {
		case kindString:
			v = kb.String(text.String)
		case kindNumber:
			v = kb.Number(num.Float64)
		default:
			return nil, errors.Wrapf(internalerr.ErrInvalidInput, "feature %q.%q: unknown kind %q", id, key, kind)
		}
		out[id] = append(out[id], kb.Feature{Key: key, Value: v})
	}
	return out, errors.Wrap(rows.Err(), "iterate features")
}

func (s *Store) loadSimilarities(ctx context.Context) ([]similarity.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a, b, degree FROM similarities ORDER BY pos`)
	if err != nil {
		return nil, errors.Wrap(err, "query similarities")
	}
	defer rows.Close()

	var pairs []similarity.Pair
	for rows.Next() {
		var p similarity.Pair
		if err := rows.Scan(&p.A, &p.B, &p.Degree); err != nil {
			return nil, errors.Wrap(err, "scan similarity")
		}
		pairs = append(pairs, p)
	}
	return pairs, errors.Wrap(rows.Err(), "iterate similarities")
}
