package render

import "github.com/specialistvlad/stagecheck/internal/stage"

// Environment labels attached to output and debug info.
const (
	EnvPrerender    = "Prerender"
	EnvPrefetch     = "Prefetch"
	EnvPrefetchable = "Prefetchable"
	EnvServer       = "Server"
)

// EnvironmentLabel names the environment output of stage s comes from.
func EnvironmentLabel(s stage.Stage, hasRuntimePrefetch bool) string {
	switch s {
	case stage.Before, stage.Static:
		return EnvPrerender
	case stage.Runtime:
		if hasRuntimePrefetch {
			return EnvPrefetch
		}
		return EnvPrefetchable
	case stage.Dynamic, stage.Abandoned:
		return EnvServer
	default:
		return EnvServer
	}
}

// EnvironmentFor returns an Options.Environment bound to hasRuntimePrefetch.
func EnvironmentFor(hasRuntimePrefetch bool) func(stage.Stage) string {
	return func(s stage.Stage) string {
		return EnvironmentLabel(s, hasRuntimePrefetch)
	}
}
