package sqlstore

import "database/sql"

// DB exposes the internal *sql.DB for tests.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}
