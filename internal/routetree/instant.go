package routetree

import (
	"fmt"
	"strings"
)

// PrefetchMode is how a navigation to a segment is prefetched.
type PrefetchMode uint8

const (
	PrefetchStatic PrefetchMode = iota + 1
	PrefetchRuntime
)

func (m PrefetchMode) String() string {
	switch m {
	case PrefetchStatic:
		return "static"
	case PrefetchRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("prefetch(%d)", uint8(m))
	}
}

// ParsePrefetchMode parses "static" or "runtime".
func ParsePrefetchMode(s string) (PrefetchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "":
		return PrefetchStatic, nil
	case "runtime":
		return PrefetchRuntime, nil
	default:
		return 0, fmt.Errorf("unknown prefetch mode %q: must be 'static' or 'runtime'", s)
	}
}

// ConfigKind discriminates InstantConfig values.
type ConfigKind uint8

const (
	// ConfigNone means the module declares nothing.
	ConfigNone ConfigKind = iota
	// ConfigBlocking is the `false` config: the segment may block.
	ConfigBlocking
	// ConfigPrefetch requires the segment not to block under Prefetch.
	ConfigPrefetch
)

// InstantConfig is a module's declared navigation contract.
type InstantConfig struct {
	Kind              ConfigKind
	Prefetch          PrefetchMode
	DisableValidation bool
}

// Blocking returns the `false` config.
func Blocking() InstantConfig {
	return InstantConfig{Kind: ConfigBlocking}
}

// Prefetch returns a config requiring instant navigation under mode.
func Prefetch(mode PrefetchMode) InstantConfig {
	return InstantConfig{Kind: ConfigPrefetch, Prefetch: mode}
}

// IsSet reports whether any config was declared.
func (c InstantConfig) IsSet() bool {
	return c.Kind != ConfigNone
}

// IsRuntime reports whether c requires runtime prefetching.
func (c InstantConfig) IsRuntime() bool {
	return c.Kind == ConfigPrefetch && c.Prefetch == PrefetchRuntime
}

func (c InstantConfig) String() string {
	switch c.Kind {
	case ConfigNone:
		return "none"
	case ConfigBlocking:
		return "false"
	case ConfigPrefetch:
		if c.DisableValidation {
			return fmt.Sprintf("{prefetch: %s, disableValidation: true}", c.Prefetch)
		}
		return fmt.Sprintf("{prefetch: %s}", c.Prefetch)
	default:
		return fmt.Sprintf("config(%d)", uint8(c.Kind))
	}
}
