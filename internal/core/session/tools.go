package session

import "strings"

// DefaultTools are installed into every session.
var DefaultTools = []string{
	"git",
	"gh",
	"python@3.12",
	"uv",
	"bun",
}

// ToolSet is an ordered, de-duplicated list of package names. It always
// starts with DefaultTools.
type ToolSet struct {
	names []string
}

// NewToolSet returns DefaultTools followed by extras, dropping duplicates
// and blank names while preserving first-seen order.
func NewToolSet(extras ...string) ToolSet {
	seen := make(map[string]bool, len(DefaultTools)+len(extras))
	names := make([]string, 0, len(DefaultTools)+len(extras))

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, n := range DefaultTools {
		add(n)
	}
	for _, n := range extras {
		add(n)
	}

	return ToolSet{names: names}
}

// ParseTools splits a comma separated --tools value.
func ParseTools(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Names returns a copy of the package names in install order.
func (t ToolSet) Names() []string {
	return append([]string(nil), t.names...)
}

// Contains reports whether name is part of the set.
func (t ToolSet) Contains(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the number of packages.
func (t ToolSet) Len() int {
	return len(t.names)
}
