package stock

import "fmt"

// Binding ties one normalized item key to a subscriber group.
type Binding struct {
	Key   string
	Label string
	Group GroupID
}

// Registry is the immutable item -> group table. Several keys may share a
// group (e.g. "ember lily" and "burning bud"); injectivity is not enforced.
type Registry struct {
	byKey    map[string]GroupID
	bindings []Binding
}

// NewRegistry normalizes keys and keeps configuration order. A key bound twice
// to different groups is a configuration error; an exact repeat is ignored.
func NewRegistry(bindings []Binding) (*Registry, error) {
	r := &Registry{byKey: make(map[string]GroupID, len(bindings))}
	for i, b := range bindings {
		key := NormalizeKey(b.Key)
		if key == "" {
			return nil, fmt.Errorf("binding %d: empty item key", i)
		}
		if b.Group == "" {
			return nil, fmt.Errorf("binding %q: empty group", key)
		}
		if prev, ok := r.byKey[key]; ok {
			if prev != b.Group {
				return nil, fmt.Errorf("binding %q: bound to both %s and %s", key, prev, b.Group)
			}
			continue
		}
		label := b.Label
		if label == "" {
			label = b.Key
		}
		r.byKey[key] = b.Group
		r.bindings = append(r.bindings, Binding{Key: key, Label: label, Group: b.Group})
	}
	return r, nil
}

// Lookup returns the group bound to key. The key is normalized first.
func (r *Registry) Lookup(key string) (GroupID, bool) {
	if r == nil {
		return "", false
	}
	g, ok := r.byKey[NormalizeKey(key)]
	return g, ok
}

// Bindings returns a copy in configuration order.
func (r *Registry) Bindings() []Binding {
	if r == nil {
		return nil
	}
	return append([]Binding(nil), r.bindings...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bindings)
}

// Exclusions holds the always-in-stock keys per category. They never ping.
type Exclusions struct {
	seeds map[string]struct{}
	gear  map[string]struct{}
}

func NewExclusions(seeds, gear []string) Exclusions {
	return Exclusions{seeds: keySet(seeds), gear: keySet(gear)}
}

func keySet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		if k := NormalizeKey(n); k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}

// Excluded reports whether key is excluded within category c only.
func (e Exclusions) Excluded(c Category, key string) bool {
	set := e.seeds
	if c == Gear {
		set = e.gear
	}
	_, ok := set[NormalizeKey(key)]
	return ok
}
