package scenegraph

import "github.com/go-logr/logr"

// SceneGraphBuilderOption is a functional option for configuring a sceneGraph.
type SceneGraphBuilderOption func(g *sceneGraph)

// WithLogger sets the logger used by the scene graph.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SceneGraphBuilderOption: option function to apply
func WithLogger(logger logr.Logger) SceneGraphBuilderOption {
	return func(g *sceneGraph) {
		g.logger = logger.WithName("scene-graph")
	}
}
