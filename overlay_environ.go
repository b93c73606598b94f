package hermit

import "mvdan.cc/sh/v3/expand"

// overlayEnviron implements [expand.WriteEnviron] as a copy-on-write layer
// over a parent [expand.Environ]. Reads fall through to the parent when the
// name isn't shadowed locally; writes always land in the local map, so a
// subshell or command substitution can mutate variables without affecting
// its parent (spec.md §4.5 step 3: "assignments inside do not propagate").
type overlayEnviron struct {
	parent expand.Environ
	values map[string]expand.Variable
	names  []string // insertion order, for deterministic Each
	unset  map[string]bool
}

func newOverlayEnviron(parent expand.Environ) *overlayEnviron {
	return &overlayEnviron{parent: parent}
}

func (o *overlayEnviron) Get(name string) expand.Variable {
	if o.unset != nil && o.unset[name] {
		return expand.Variable{}
	}
	if v, ok := o.values[name]; ok {
		return v
	}
	if o.parent != nil {
		return o.parent.Get(name)
	}
	return expand.Variable{}
}

func (o *overlayEnviron) Set(name string, vr expand.Variable) error {
	if o.values == nil {
		o.values = map[string]expand.Variable{}
	}
	if !vr.IsSet() {
		if o.unset == nil {
			o.unset = map[string]bool{}
		}
		o.unset[name] = true
		delete(o.values, name)
		return nil
	}
	if o.unset != nil {
		delete(o.unset, name)
	}
	if _, had := o.values[name]; !had {
		o.names = append(o.names, name)
	}
	o.values[name] = vr
	return nil
}

func (o *overlayEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	seen := map[string]bool{}
	for _, name := range o.names {
		vr, ok := o.values[name]
		if !ok {
			continue
		}
		seen[name] = true
		if !fn(name, vr) {
			return
		}
	}
	if o.parent == nil {
		return
	}
	o.parent.Each(func(name string, vr expand.Variable) bool {
		if seen[name] {
			return true
		}
		if o.unset != nil && o.unset[name] {
			return true
		}
		return fn(name, vr)
	})
}
