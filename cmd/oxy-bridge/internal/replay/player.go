package replay

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/go-logr/logr"
)

// Framer runs the per-frame bridge work for a panel.
type Framer interface {
	Setup(panel string) error
}

// Player applies script steps to a MemoryHost.
type Player struct {
	host    host.MemoryHost
	framer  Framer
	baseDir string
	logger  logr.Logger

	names map[string]host.Handle
}

// Summary reports what a replay did.
type Summary struct {
	Steps  int
	Frames int
	// Entities maps every named entity to its host handle.
	Entities map[string]host.Handle
}

// PlayerOption is a functional option for configuring a Player.
type PlayerOption func(p *Player)

// WithBaseDir resolves relative texture paths against dir.
func WithBaseDir(dir string) PlayerOption {
	return func(p *Player) {
		p.baseDir = dir
	}
}

// WithLogger sets the logger used for per-step traces.
func WithLogger(logger logr.Logger) PlayerOption {
	return func(p *Player) {
		p.logger = logger.WithName("replay")
	}
}

// NewPlayer creates a player for h. Frame steps call framer.Setup.
//
// Parameters:
//   - h: the host the steps mutate
//   - framer: the per-frame hook, usually the bridge
//   - options: functional options to configure the player
//
// Returns:
//   - *Player: the player
func NewPlayer(h host.MemoryHost, framer Framer, options ...PlayerOption) *Player {
	if h == nil || framer == nil {
		panic("replay: NewPlayer requires a host and a framer")
	}
	p := &Player{
		host:   h,
		framer: framer,
		logger: logr.Discard(),
		names:  make(map[string]host.Handle),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Handle returns the host handle created under name.
func (p *Player) Handle(name string) (host.Handle, bool) {
	h, ok := p.names[name]
	return h, ok
}

// Run applies every step in order and stops at the first failing step.
//
// Parameters:
//   - ctx: cancels the replay between steps
//   - s: the script
//
// Returns:
//   - Summary: what was applied, also on failure
//   - error: the failing step, wrapped with its index and op
func (p *Player) Run(ctx context.Context, s *Script) (Summary, error) {
	panel := s.Panel.Name
	var sum Summary
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return p.summary(sum), err
		}
		frames, err := p.apply(panel, step)
		if err != nil {
			return p.summary(sum), fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		sum.Steps++
		sum.Frames += frames
		p.logger.V(1).Info("step applied", "index", i, "op", step.Op)
	}
	return p.summary(sum), nil
}

func (p *Player) summary(sum Summary) Summary {
	sum.Entities = make(map[string]host.Handle, len(p.names))
	for name, h := range p.names {
		sum.Entities[name] = h
	}
	return sum
}

func (p *Player) apply(panel string, step Step) (int, error) {
	switch step.Op {
	case "addTransform":
		return 0, p.name(step.Name, p.host.AddTransform(transformOf(step.Transform)))
	case "addLight":
		parent, err := p.lookup(step.Parent)
		if err != nil {
			return 0, err
		}
		data, err := lightOf(step.Light)
		if err != nil {
			return 0, err
		}
		h, err := p.host.AddLight(parent, data)
		if err != nil {
			return 0, err
		}
		return 0, p.name(step.Name, h)
	case "addMesh":
		parent, err := p.lookup(step.Parent)
		if err != nil {
			return 0, err
		}
		h, err := p.host.AddMesh(parent, meshOf(step.Geometry))
		if err != nil {
			return 0, err
		}
		return 0, p.name(step.Name, h)
	case "addShader":
		data, err := p.shaderOf(step.Surface)
		if err != nil {
			return 0, err
		}
		return 0, p.name(step.Name, p.host.AddShader(data))
	case "addGroup":
		return 0, p.name(step.Name, p.host.AddShadingGroup())
	case "setTransform":
		target, err := p.lookup(step.Target)
		if err != nil {
			return 0, err
		}
		return 0, p.host.SetTransform(target, transformOf(step.Transform))
	case "setLight":
		target, err := p.lookup(step.Target)
		if err != nil {
			return 0, err
		}
		data, err := lightOf(step.Light)
		if err != nil {
			return 0, err
		}
		return 0, p.host.SetLight(target, data)
	case "setMesh":
		target, err := p.lookup(step.Target)
		if err != nil {
			return 0, err
		}
		return 0, p.host.SetMesh(target, meshOf(step.Geometry))
	case "setShader":
		target, err := p.lookup(step.Target)
		if err != nil {
			return 0, err
		}
		data, err := p.shaderOf(step.Surface)
		if err != nil {
			return 0, err
		}
		return 0, p.host.SetShader(target, data)
	case "connect", "disconnect":
		shader, group, err := p.pair(step.Shader, step.Group)
		if err != nil {
			return 0, err
		}
		if step.Op == "connect" {
			return 0, p.host.ConnectShader(shader, group)
		}
		return 0, p.host.DisconnectShader(shader, group)
	case "assign", "unassign":
		mesh, group, err := p.pair(step.Mesh, step.Group)
		if err != nil {
			return 0, err
		}
		if step.Op == "assign" {
			return 0, p.host.AssignGroup(mesh, group)
		}
		return 0, p.host.UnassignGroup(mesh, group)
	case "remove":
		target, err := p.lookup(step.Target)
		if err != nil {
			return 0, err
		}
		if err := p.host.Remove(target); err != nil {
			return 0, err
		}
		delete(p.names, step.Target)
		return 0, nil
	case "resize":
		if step.Width <= 0 || step.Height <= 0 {
			return 0, fmt.Errorf("invalid panel size %dx%d", step.Width, step.Height)
		}
		p.host.SetPanelSize(panel, step.Width, step.Height)
		return 0, nil
	case "frame":
		frames := max(step.Frames, 1)
		for range frames {
			if err := p.framer.Setup(panel); err != nil {
				return 0, err
			}
		}
		return frames, nil
	default:
		return 0, fmt.Errorf("unknown op %q", step.Op)
	}
}

func (p *Player) name(name string, h host.Handle) error {
	if name == "" {
		return nil
	}
	if _, ok := p.names[name]; ok {
		return fmt.Errorf("name %q already used", name)
	}
	p.names[name] = h
	return nil
}

func (p *Player) lookup(name string) (host.Handle, error) {
	h, ok := p.names[name]
	if !ok {
		return host.Handle{}, fmt.Errorf("entity %q: %w", name, common.ErrNotFound)
	}
	return h, nil
}

func (p *Player) pair(a, b string) (host.Handle, host.Handle, error) {
	ha, err := p.lookup(a)
	if err != nil {
		return host.Handle{}, host.Handle{}, err
	}
	hb, err := p.lookup(b)
	if err != nil {
		return host.Handle{}, host.Handle{}, err
	}
	return ha, hb, nil
}

func (p *Player) shaderOf(s *SurfaceSpec) (host.ShaderData, error) {
	if s == nil {
		return host.ShaderData{Type: host.ShaderTypeLambert, Color: [3]float32{1, 1, 1}}, nil
	}
	data := host.ShaderData{
		Type:      host.ParseShaderType(s.Type),
		Color:     s.Color,
		Metallic:  s.Metallic,
		Roughness: s.Roughness,
	}
	if len(s.Textures) > 0 {
		data.Textures = make(map[common.TextureSlot]string, len(s.Textures))
	}
	for name, path := range s.Textures {
		slot, ok := common.ParseTextureSlot(name)
		if !ok {
			return host.ShaderData{}, fmt.Errorf("texture slot %q: %w", name, common.ErrUnsupportedVariant)
		}
		if p.baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(p.baseDir, path)
		}
		data.Textures[slot] = path
	}
	return data, nil
}

func transformOf(t *TransformSpec) host.TransformData {
	data := host.IdentityTransform()
	if t == nil {
		return data
	}
	data.Translation = t.Translation
	if t.Rotation != nil {
		data.Rotation = *t.Rotation
	}
	if t.Scale != nil {
		data.Scale = *t.Scale
	}
	return data
}

func lightOf(l *LightSpec) (host.LightData, error) {
	if l == nil {
		return host.LightData{}, fmt.Errorf("missing light")
	}
	kind, ok := host.ParseLightKind(l.Kind)
	if !ok {
		return host.LightData{}, fmt.Errorf("light kind %q: %w", l.Kind, common.ErrUnsupportedVariant)
	}
	return host.LightData{
		Kind:      kind,
		Color:     l.Color,
		Intensity: l.Intensity,
		ConeAngle: l.ConeAngle,
	}, nil
}

func meshOf(g *GeometrySpec) host.MeshData {
	if g == nil {
		return host.MeshData{SubMeshes: 1}
	}
	return host.MeshData{Name: g.Name, SubMeshes: g.SubMeshes}
}
