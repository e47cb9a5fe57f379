// Package coretools provides the built-in tools shipped with the runtime.
package coretools

import "github.com/mikan/convo/pkg/tool"

// RegisterAll adds every built-in tool to the registry. Called once at
// startup, before any turn runs.
func RegisterAll(registry *tool.Registry) error {
	builtins := []tool.Tool{
		&Calculator{},
		&Clock{},
		&Echo{},
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}
