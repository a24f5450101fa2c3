package store

import "fmt"

// Open selects the SQL backend by driver name ("sqlite" or "postgres").
func Open(driver, dsn string, opts ...Option) (Store, error) {
	opts = append([]Option{WithDSN(dsn)}, opts...)
	switch driver {
	case "sqlite":
		return NewSQLiteStore(opts...)
	case "postgres":
		return NewPostgresStore(opts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
