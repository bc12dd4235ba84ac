package store

import (
	"context"
	"fmt"

	"github.com/roach88/kbind/internal/kval"
)

// DefineEnum stores an enum domain and registers it with the store runtime,
// replacing any domain of the same name.
func (s *Store) DefineEnum(ctx context.Context, name string, symbols []string) error {
	payload, err := s.serialize(kval.Symbol{Data: kval.List(symbols...)})
	if err != nil {
		return fmt.Errorf("define enum %s: %w", name, err)
	}
	if err := s.rt.DefineEnum(name, symbols); err != nil {
		return fmt.Errorf("define enum %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enums (name, payload) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload
	`, name, payload)
	if err != nil {
		s.rt.DropEnum(name)
		return fmt.Errorf("define enum %s: %w", name, err)
	}
	return nil
}

// Enums returns the stored domain names in order.
func (s *Store) Enums(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM enums ORDER BY name COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("query enums: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan enum: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// loadEnums registers every stored domain with the runtime.
func (s *Store) loadEnums(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM enums`)
	if err != nil {
		return fmt.Errorf("query enums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("scan enum: %w", err)
		}
		v, err := s.deserialize(payload, "")
		if err != nil {
			return fmt.Errorf("enum %s: %w", name, err)
		}
		syms, ok := v.(kval.Symbol)
		if !ok || !syms.IsList() {
			return fmt.Errorf("enum %s: stored domain is %s, not a symbol list", name, v.Type())
		}
		if err := s.rt.DefineEnum(name, syms.Values()); err != nil {
			return fmt.Errorf("enum %s: %w", name, err)
		}
	}
	return rows.Err()
}

// serialize writes v as an IPC message through the store runtime.
func (s *Store) serialize(v kval.Value) ([]byte, error) {
	raw, err := kval.ToK(s.rt, v)
	if err != nil {
		return nil, err
	}
	defer s.rt.Unref(raw)
	return s.rt.Serialize(raw)
}

// deserialize reads an IPC message into an owned value.
func (s *Store) deserialize(payload []byte, enumSource string) (kval.Value, error) {
	raw, err := s.rt.Deserialize(payload)
	if err != nil {
		return nil, err
	}
	defer s.rt.Unref(raw)
	return kval.Clone(kval.FromK(raw, enumSource)), nil
}
