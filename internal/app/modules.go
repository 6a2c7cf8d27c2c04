package app

import (
	"github.com/specialistvlad/stagecheck/internal/registry"
	"github.com/specialistvlad/stagecheck/modules/print"
	"github.com/specialistvlad/stagecheck/modules/socketio"
	"github.com/specialistvlad/stagecheck/modules/structured"
)

// coreModules is the definitive list of all sink modules that are compiled
// into the stagecheck binary.
var coreModules = []registry.Module{
	&print.Module{},
	&structured.Module{},
	&socketio.Module{},
}
