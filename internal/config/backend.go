package config

// ConfigBackend abstracts persisted config storage. The default backend is
// a flat JSON file in an XDG-compatible path; tests substitute an
// in-memory map.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
