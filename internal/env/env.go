package env

import (
	"maps"
	"os"
	"slices"
	"strings"
)

type Var map[string]string

// Env composes child-process environments: the supervisor's OS environment,
// service-wide variables, then per-process variables.
type Env struct {
	Var Var // service-wide variables (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS caches the current process environment as the base. Without a
// cached base, Merge reads the OS environment on every call.
func (e *Env) FromOS() {
	e.env = osEnv()
}

func osEnv() Var {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			v := kv[i+1:]
			if k == "" {
				continue
			}
			base[k] = v
		}
	}
	return base
}

// WithSet returns a copy of e with K=V added to the service-wide variables.
func (e *Env) WithSet(k, v string) *Env {
	out := &Env{Var: maps.Clone(e.Var), env: e.env}
	if out.Var == nil {
		out.Var = make(Var)
	}
	out.Var[k] = v
	return out
}

// Empty reports whether no service-wide variables are configured.
func (e *Env) Empty() bool { return e == nil || len(e.Var) == 0 }

// Merge composes the final environment list applying order:
// base = OS env (or the cached base)
// then apply service-wide e.Var overrides
// then apply perProc overrides
// The result is sorted by key, in "K=V" form, with ${VAR} expansion performed
// using the composed map (simple expansion, no recursion).
func (e *Env) Merge(perProc map[string]string) []string {
	base := e.env
	if base == nil {
		base = osEnv()
	}
	m := make(Var, len(base)+len(e.Var)+len(perProc))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for k, v := range perProc {
		if k == "" || strings.ContainsRune(k, '=') {
			continue
		}
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
