// package common contains common types that are used throughout the bridge. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TextureSlot identifies one of the texture inputs of a material.
type TextureSlot int

const (
	// TextureSlotAlbedo is the base color map.
	TextureSlotAlbedo TextureSlot = iota
	// TextureSlotAO is the ambient occlusion map.
	TextureSlotAO
	// TextureSlotEmissive is the emission map.
	TextureSlotEmissive
	// TextureSlotMetallic is the metalness map.
	TextureSlotMetallic
	// TextureSlotNormal is the tangent-space normal map.
	TextureSlotNormal
	// TextureSlotRoughness is the roughness map.
	TextureSlotRoughness

	textureSlotCount
)

// TextureSlots lists every texture slot in declaration order.
var TextureSlots = [textureSlotCount]TextureSlot{
	TextureSlotAlbedo,
	TextureSlotAO,
	TextureSlotEmissive,
	TextureSlotMetallic,
	TextureSlotNormal,
	TextureSlotRoughness,
}

var textureSlotNames = [textureSlotCount]string{"albedo", "ao", "emissive", "metallic", "normal", "roughness"}

func (s TextureSlot) String() string {
	if s < 0 || s >= textureSlotCount {
		return fmt.Sprintf("TextureSlot(%d)", int(s))
	}
	return textureSlotNames[s]
}

// ParseTextureSlot converts a slot name ("albedo", "normal", ...) into a TextureSlot.
// Matching is case-insensitive.
//
// Parameters:
//   - name: the slot name
//
// Returns:
//   - TextureSlot: the parsed slot
//   - bool: false if the name does not match any slot
func ParseTextureSlot(name string) (TextureSlot, bool) {
	for i, n := range textureSlotNames {
		if strings.EqualFold(n, name) {
			return TextureSlot(i), true
		}
	}
	return 0, false
}

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// DecodeTextureFile loads an image from disk and converts it to RGBA staging data.
// PNG and JPEG are supported by the standard library, BMP, TIFF and WebP through golang.org/x/image.
//
// Parameters:
//   - path: the image file path
//
// Returns:
//   - TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: error if the file cannot be opened or decoded
func DecodeTextureFile(path string) (TextureStagingData, error) {
	file, err := os.Open(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", path, err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}

// DecodeTextureConfig reads only the image header of a texture file.
//
// Parameters:
//   - path: the image file path
//
// Returns:
//   - uint32: width in pixels
//   - uint32: height in pixels
//   - error: error if the file cannot be opened or the header is not a known format
func DecodeTextureConfig(path string) (uint32, uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read texture header %s: %w", path, err)
	}
	return uint32(cfg.Width), uint32(cfg.Height), nil
}

// MipLevelCount returns the number of mip levels of a full chain for the given base size.
//
// Parameters:
//   - width: base level width in pixels
//   - height: base level height in pixels
//
// Returns:
//   - uint32: number of levels including the base level
func MipLevelCount(width, height uint32) uint32 {
	levels := uint32(1)
	for width > 1 || height > 1 {
		width = max(width/2, 1)
		height = max(height/2, 1)
		levels++
	}
	return levels
}

// GenerateMipChain downsamples base into a full mip chain with a bilinear filter.
// The first element is base itself.
//
// Parameters:
//   - base: the RGBA base level
//
// Returns:
//   - []TextureStagingData: every level from base down to 1x1
func GenerateMipChain(base TextureStagingData) []TextureStagingData {
	chain := make([]TextureStagingData, 0, MipLevelCount(base.Width, base.Height))
	chain = append(chain, base)

	src := &image.RGBA{
		Pix:    base.Pixels,
		Stride: int(base.Width) * 4,
		Rect:   image.Rect(0, 0, int(base.Width), int(base.Height)),
	}
	w, h := base.Width, base.Height
	for w > 1 || h > 1 {
		w = max(w/2, 1)
		h = max(h/2, 1)
		dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		chain = append(chain, TextureStagingData{Pixels: dst.Pix, Width: w, Height: h})
		src = dst
	}
	return chain
}
