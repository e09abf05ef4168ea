package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter

	// Offscreen color target standing in for the frame graph output.
	colorTexture *wgpu.Texture
	colorView    *wgpu.TextureView

	nextTextureID uint64
	textures      map[texture.Handle]wgpuTexture
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		nextTextureID: 1,
		textures:      make(map[texture.Handle]wgpuTexture),
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Bridge Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		w.adapter.Release()
		w.instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device != nil && b.queue != nil
}

func (b *wgpuRendererBackendImpl) WaitIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return fmt.Errorf("device released")
	}
	b.device.Poll(true, nil)
	return nil
}

func (b *wgpuRendererBackendImpl) ConfigureTarget(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	colorTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Frame Color Target",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	colorView, err := colorTexture.CreateView(nil)
	if err != nil {
		colorTexture.Release()
		return err
	}

	b.releaseTargetLocked()
	b.colorTexture = colorTexture
	b.colorView = colorView
	return nil
}

func (b *wgpuRendererBackendImpl) LoadFromFile(path string, flags texture.LoadFlags) (texture.Handle, error) {
	data, err := b.Decode(path)
	if err != nil {
		return texture.Handle{}, err
	}
	return b.LoadFromStaging(path, data, flags)
}

func (b *wgpuRendererBackendImpl) Decode(path string) (common.TextureStagingData, error) {
	data, err := common.DecodeTextureFile(path)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("wgpu texture pool: %w: %w", common.ErrResourceUnavailable, err)
	}
	return data, nil
}

func (b *wgpuRendererBackendImpl) LoadFromStaging(label string, stagingData common.TextureStagingData, flags texture.LoadFlags) (texture.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return texture.Handle{}, fmt.Errorf("wgpu texture pool: device released: %w", common.ErrResourceUnavailable)
	}
	if stagingData.Width == 0 || stagingData.Height == 0 {
		return texture.Handle{}, fmt.Errorf("wgpu texture pool: texture %q has zero size: %w", label, common.ErrResourceUnavailable)
	}

	levels := []common.TextureStagingData{stagingData}
	if flags.Has(texture.FlagGenerateMips) {
		levels = common.GenerateMipChain(stagingData)
	}
	format := wgpu.TextureFormatRGBA8Unorm
	if flags.Has(texture.FlagSRGB) {
		format = wgpu.TextureFormatRGBA8UnormSrgb
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              stagingData.Width,
			Height:             stagingData.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: uint32(len(levels)),
		SampleCount:   1,
	})
	if err != nil {
		return texture.Handle{}, fmt.Errorf("wgpu texture pool: create %q: %w: %w", label, common.ErrResourceUnavailable, err)
	}

	for level, data := range levels {
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			data.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  data.Width * 4,
				RowsPerImage: data.Height,
			},
			&wgpu.Extent3D{
				Width:              data.Width,
				Height:             data.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return texture.Handle{}, fmt.Errorf("wgpu texture pool: view %q: %w: %w", label, common.ErrResourceUnavailable, err)
	}

	h := texture.HandleOf(b.nextTextureID)
	b.nextTextureID++
	b.textures[h] = wgpuTexture{texture: tex, view: view}
	return h, nil
}

func (b *wgpuRendererBackendImpl) Unload(h texture.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("wgpu texture pool: unload %s: %w", h, common.ErrNotFound)
	}
	t.view.Release()
	t.texture.Release()
	delete(b.textures, h)
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, t := range b.textures {
		t.view.Release()
		t.texture.Release()
		delete(b.textures, h)
	}
	b.releaseTargetLocked()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *wgpuRendererBackendImpl) releaseTargetLocked() {
	if b.colorView != nil {
		b.colorView.Release()
		b.colorView = nil
	}
	if b.colorTexture != nil {
		b.colorTexture.Release()
		b.colorTexture = nil
	}
}
