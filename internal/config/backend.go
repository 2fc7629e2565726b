package config

// ConfigBackend is the persistent store behind `config set`. Keys are the
// dotted names from the key table (e.g. "api.base_url"); a missing key
// reports ok=false with a nil error.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error

	// Location describes where values live, for display.
	Location() string
}
