package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/k"
	"github.com/roach88/kbind/internal/kval"
)

// ErrNotFound is returned for names the catalog does not hold.
var ErrNotFound = errors.New("not found")

// Entry describes a stored value without decoding it.
type Entry struct {
	Name string `json:"name"`
	// Seq orders entries by their last write.
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	QType      k.Type `json:"qtype"`
	Len        int64  `json:"len"`
	EnumSource string `json:"enum_source,omitempty"`
	Q          string `json:"q"`
	Hash       string `json:"hash"`
	Size       int64  `json:"size"`
}

// Put stores v under name, replacing any previous value. The payload is
// the IPC message of v; an enum value keeps its source alongside so Get can
// restore it. Enum atoms need their domain registered with DefineEnum first.
func (s *Store) Put(ctx context.Context, name string, v kval.Value) (Entry, error) {
	if name == "" {
		return Entry{}, errors.New("put: empty name")
	}
	if v == nil {
		v = kval.Null{}
	}
	hash, err := codec.Hash(v)
	if err != nil {
		return Entry{}, fmt.Errorf("put %s: %w", name, err)
	}
	payload, err := s.serialize(v)
	if err != nil {
		return Entry{}, fmt.Errorf("put %s: %w", name, err)
	}
	nested, err := json.Marshal(enumSources(v))
	if err != nil {
		return Entry{}, fmt.Errorf("put %s: %w", name, err)
	}

	e := Entry{
		Name:  name,
		Type:  codec.TypeName(v),
		QType: v.Type(),
		Len:   v.Len(),
		Q:     kval.Format(v),
		Hash:  hash,
		Size:  int64(len(payload)),
	}
	if ev, ok := v.(kval.Enum); ok {
		e.EnumSource = ev.Source
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO entries (name, seq, type, qtype, len, enum_source, enum_sources, q, hash, payload)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			seq = excluded.seq,
			type = excluded.type,
			qtype = excluded.qtype,
			len = excluded.len,
			enum_source = excluded.enum_source,
			enum_sources = excluded.enum_sources,
			q = excluded.q,
			hash = excluded.hash,
			payload = excluded.payload
		RETURNING seq
	`,
		e.Name,
		e.Type,
		int(e.QType),
		e.Len,
		e.EnumSource,
		string(nested),
		e.Q,
		e.Hash,
		payload,
	).Scan(&e.Seq)
	if err != nil {
		return Entry{}, fmt.Errorf("put %s: %w", name, err)
	}
	return e, nil
}

// Get decodes the value stored under name. The result is owned by the
// caller and does not reference store memory.
func (s *Store) Get(ctx context.Context, name string) (kval.Value, error) {
	var (
		source  string
		nested  string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enum_source, enum_sources, payload FROM entries WHERE name = ?
	`, name).Scan(&source, &nested, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}

	v, err := s.deserialize(payload, source)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	var sources map[string]string
	if err := json.Unmarshal([]byte(nested), &sources); err != nil {
		return nil, fmt.Errorf("get %s: enum sources: %w", name, err)
	}
	if len(sources) == 0 {
		return v, nil
	}
	v, err = attachSources(v, "", sources)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return v, nil
}

// Stat returns the entry for name.
func (s *Store) Stat(ctx context.Context, name string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, seq, type, qtype, len, enum_source, q, hash, length(payload)
		FROM entries
		WHERE name = ?
	`, name)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("stat %s: %w", name, ErrNotFound)
	}
	return e, err
}

// List returns every entry ordered by seq, then name.
// Returns an empty slice (not nil) for an empty catalog.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `
		SELECT name, seq, type, qtype, len, enum_source, q, hash, length(payload)
		FROM entries
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`)
}

// FindByHash returns the entries holding a value with the given content
// hash, in List order.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT name, seq, type, qtype, len, enum_source, q, hash, length(payload)
		FROM entries
		WHERE hash = ?
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`, hash)
}

// Delete removes name. Deleting a missing name returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", name, ErrNotFound)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e     Entry
		qtype int
	)
	err := row.Scan(&e.Name, &e.Seq, &e.Type, &qtype, &e.Len, &e.EnumSource, &e.Q, &e.Hash, &e.Size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.QType = k.Type(qtype)
	return e, nil
}
