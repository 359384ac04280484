package sqlite

import "context"

// Exec runs a raw statement against the store's database.
func Exec(s *Store, query string, args ...any) error {
	_, err := s.db.ExecContext(context.Background(), s.rebind(query), args...)
	return err
}

var SQLiteDSN = sqliteDSN
