package recipe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Matrix enumerates build configurations. Require holds settings keys
// ("os", "compiler", "compiler_version", "compiler_runtime", "build_type",
// "arch"), Options holds recipe options ("dll_sign"). Each key maps to the
// values to combine.
type Matrix struct {
	Require map[string][]string `yaml:"require"`
	Options map[string][]string `yaml:"options"`
}

// sortedKeys returns the keys of kvs in alphabetical order.
func sortedKeys(kvs map[string][]string) []string {
	keys := make([]string, 0, len(kvs))
	for k := range kvs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// product returns the cartesian product of kvs, each element mapping every
// key to one of its values. Keys are walked in alphabetical order, so the
// first key varies slowest.
func product(kvs map[string][]string) []map[string]string {
	if len(kvs) == 0 {
		return nil
	}
	result := []map[string]string{{}}
	for _, key := range sortedKeys(kvs) {
		next := make([]map[string]string, 0, len(result)*len(kvs[key]))
		for _, prev := range result {
			for _, v := range kvs[key] {
				m := make(map[string]string, len(prev)+1)
				for pk, pv := range prev {
					m[pk] = pv
				}
				m[key] = v
				next = append(next, m)
			}
		}
		result = next
	}
	return result
}

// join renders one product element as its values joined by "-" in key
// order.
func join(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return strings.Join(vals, "-")
}

// Combinations returns all cartesian product combinations of the matrix.
// Keys are sorted alphabetically, and combinations are built layer by layer.
// Require fields are joined with "-", then combined with options using "|".
func (m *Matrix) Combinations() []string {
	var require, options []string
	for _, e := range product(m.Require) {
		require = append(require, join(e))
	}
	for _, e := range product(m.Options) {
		options = append(options, join(e))
	}
	if len(require) == 0 {
		return options
	}
	if len(options) == 0 {
		return require
	}
	result := make([]string, 0, len(require)*len(options))
	for _, req := range require {
		for _, opt := range options {
			result = append(result, req+"|"+opt)
		}
	}
	return result
}

// CombinationCount returns the total number of cartesian product combinations.
func (m *Matrix) CombinationCount() int {
	count := func(kvs map[string][]string) int {
		if len(kvs) == 0 {
			return 0
		}
		n := 1
		for _, v := range kvs {
			n *= len(v)
		}
		return n
	}
	require, options := count(m.Require), count(m.Options)
	switch {
	case require == 0:
		return options
	case options == 0:
		return require
	}
	return require * options
}

// Settings expands the matrix into raw settings requests, one per
// combination, in the order of Combinations. Settings not named by the
// matrix are merged from base, so a combination that switches compiler does
// not inherit the base compiler's version or runtime. Combinations that are
// invalid for the recipe are still returned: Resolve rejects them.
func (m *Matrix) Settings(base Settings) ([]Settings, error) {
	require := product(m.Require)
	if len(require) == 0 {
		require = []map[string]string{{}}
	}
	options := product(m.Options)
	if len(options) == 0 {
		options = []map[string]string{{}}
	}

	var out []Settings
	for _, req := range require {
		for _, opt := range options {
			var s Settings
			for k, v := range req {
				if err := s.set(k, v); err != nil {
					return nil, err
				}
			}
			for k, v := range opt {
				if err := s.set(k, v); err != nil {
					return nil, err
				}
			}
			out = append(out, s.Merge(base))
		}
	}
	return out, nil
}

func (s *Settings) set(key, value string) error {
	switch key {
	case "os":
		s.OS = value
	case "compiler":
		s.Compiler = value
	case "compiler_version":
		s.CompilerVersion = value
	case "compiler_runtime":
		s.CompilerRuntime = value
	case "compiler_libcxx":
		s.CompilerLibCxx = value
	case "build_type":
		s.BuildType = value
	case "arch":
		s.Arch = value
	case "dll_sign":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("matrix: dll_sign: %w", err)
		}
		s.DLLSign = &b
	default:
		return fmt.Errorf("matrix: unknown setting %q", key)
	}
	return nil
}
