package texture

// MemoryPoolBuilderOption is a functional option for configuring a memoryPool.
type MemoryPoolBuilderOption func(p *memoryPool)

// WithStrictFiles makes LoadFromFile and Decode fail for files that do not exist instead of
// falling back to a placeholder.
//
// Parameters:
//   - strict: true to require existing files
//
// Returns:
//   - MemoryPoolBuilderOption: option function to apply
func WithStrictFiles(strict bool) MemoryPoolBuilderOption {
	return func(p *memoryPool) {
		p.strictFiles = strict
	}
}
