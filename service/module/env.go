package module

import "os"

// Env is the host module exposing environment variables to scripts as
// env.get(name).
type Env struct{}

// Get returns the value of an environment variable, empty when unset.
func (e *Env) Get(name string) string {
	return os.Getenv(name)
}

// Has reports whether an environment variable is set.
func (e *Env) Has(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}
