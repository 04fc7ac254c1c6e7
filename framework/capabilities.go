package framework

import "sort"

// Capabilities is the set of optional features available for a test run. Tests that depend on a
// capability that is absent are skipped rather than failed.
type Capabilities []string

func (c Capabilities) Has(name string) bool {
	for _, capability := range c {
		if capability == name {
			return true
		}
	}
	return false
}

// HasAll is true if every named capability is present.
func (c Capabilities) HasAll(names ...string) bool {
	for _, n := range names {
		if !c.Has(n) {
			return false
		}
	}
	return true
}

// Sorted returns a sorted copy.
func (c Capabilities) Sorted() Capabilities {
	ret := append(Capabilities(nil), c...)
	sort.Strings(ret)
	return ret
}
