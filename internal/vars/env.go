package vars

import (
	"os"
	"sort"
)

// Environ is the process environment as seen by the store. Tests replace
// it with a MapEnv so that they never touch the real environment.
type Environ interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
}

// ProcessEnv forwards to the os package.
type ProcessEnv struct{}

func (ProcessEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (ProcessEnv) Setenv(key, value string) error     { return os.Setenv(key, value) }
func (ProcessEnv) Unsetenv(key string) error          { return os.Unsetenv(key) }

// MapEnv is an in-memory Environ.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnv) Setenv(key, value string) error {
	m[key] = value
	return nil
}

func (m MapEnv) Unsetenv(key string) error {
	delete(m, key)
	return nil
}

// Keys returns the variable names in sorted order.
func (m MapEnv) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
