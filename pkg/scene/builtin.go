package scene

import (
	"fmt"
	"sort"
)

// builtins maps scene names to their constructors
var builtins = map[string]func() *Scene{
	"cornell": NewCornellScene,
	"floor": func() *Scene {
		return NewFloorScene(DefaultFloorConfig())
	},
	"spheregrid": func() *Scene {
		return NewSphereGridScene(DefaultSphereGridConfig())
	},
}

// Builtin returns a fresh copy of the named built-in scene
func Builtin(name string) (*Scene, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene %q (available: %v)", name, BuiltinNames())
	}
	return ctor(), nil
}

// BuiltinNames lists the built-in scenes in sorted order
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
