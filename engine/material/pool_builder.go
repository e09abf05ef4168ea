package material

import "github.com/go-logr/logr"

// PoolBuilderOption is a functional option for configuring a pool.
type PoolBuilderOption func(p *pool)

// WithPoolLogger sets the logger used by the pool.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithPoolLogger(logger logr.Logger) PoolBuilderOption {
	return func(p *pool) {
		p.logger = logger.WithName("material-pool")
	}
}

// WithDefaultMaterial overrides the constants of the DEFAULT material.
//
// Parameters:
//   - color: the base color
//   - metallic: the metallic factor
//   - roughness: the roughness factor
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithDefaultMaterial(color [3]float32, metallic, roughness float32) PoolBuilderOption {
	return func(p *pool) {
		p.defaultOpts = []MaterialBuilderOption{
			WithBaseColor(color),
			WithMetallic(metallic),
			WithRoughness(roughness),
		}
	}
}
