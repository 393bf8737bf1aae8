package model

import (
	"regexp"
	"sort"
)

// Registry maps wallet addresses to display names. It is immutable after construction.
type Registry struct {
	names     map[string]string
	addresses []string
}

// NewRegistry copies the given mapping and fixes the iteration order.
func NewRegistry(wallets map[string]string) *Registry {
	r := &Registry{names: make(map[string]string, len(wallets))}
	for addr, name := range wallets {
		r.names[addr] = name
		r.addresses = append(r.addresses, addr)
	}
	sort.Strings(r.addresses)
	return r
}

// Addresses returns the wallet addresses in sorted order.
func (r *Registry) Addresses() []string {
	out := make([]string, len(r.addresses))
	copy(out, r.addresses)
	return out
}

// Name returns the display name for addr, or addr itself when none is configured.
func (r *Registry) Name(addr string) string {
	if name := r.names[addr]; name != "" {
		return name
	}
	return addr
}

// Len returns the number of registered wallets.
func (r *Registry) Len() int { return len(r.addresses) }

var whitespace = regexp.MustCompile(`\s+`)

// SanitizeName turns a display name into a directory-safe name.
func SanitizeName(name string) string {
	return whitespace.ReplaceAllString(name, "_")
}
