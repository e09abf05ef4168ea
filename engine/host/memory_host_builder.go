package host

// MemoryHostBuilderOption is a functional option for configuring a memoryHost.
// Use the With* functions to create options.
type MemoryHostBuilderOption func(m *memoryHost)

// WithPanel registers a panel with an initial output size.
//
// Parameters:
//   - name: the panel name
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - MemoryHostBuilderOption: option function to apply
func WithPanel(name string, width, height int) MemoryHostBuilderOption {
	return func(m *memoryHost) {
		m.panels[name] = [2]int{width, height}
	}
}
