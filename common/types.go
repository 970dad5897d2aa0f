// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// TextureStagingData holds RGBA pixel data for a texture binding pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// AddressMode controls sampling outside the [0, 1] texture coordinate range.
type AddressMode int

const (
	AddressModeDefault AddressMode = iota
	AddressModeRepeat
	AddressModeClampToEdge
	AddressModeMirrorRepeat
)

// FilterMode controls texel filtering.
type FilterMode int

const (
	FilterModeDefault FilterMode = iota
	FilterModeLinear
	FilterModeNearest
)

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero values select the backend defaults: repeat addressing and linear filtering.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode in each dimension.
	AddressModeU, AddressModeV, AddressModeW AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter FilterMode
	// LodMinClamp and LodMaxClamp bound the level of detail used for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy is the anisotropic filtering level; zero means 1.
	MaxAnisotropy uint16
}

// ClampedLinearSampler samples render targets: linear filtering without wrap-around at the screen edges.
var ClampedLinearSampler = SamplerStagingData{
	AddressModeU: AddressModeClampToEdge,
	AddressModeV: AddressModeClampToEdge,
	AddressModeW: AddressModeClampToEdge,
	MagFilter:    FilterModeLinear,
	MinFilter:    FilterModeLinear,
	MipmapFilter: FilterModeNearest,
}

// SolidTexture returns a 1x1 texture filled with a single RGBA color.
func SolidTexture(r, g, b, a uint8) TextureStagingData {
	return TextureStagingData{
		Pixels: []byte{r, g, b, a},
		Width:  1,
		Height: 1,
	}
}

// RGBAStaging converts an RGBA image into staging data without copying when the stride is tight.
func RGBAStaging(img *image.RGBA) TextureStagingData {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := img.Pix
	if img.Stride != w*4 {
		pix = make([]byte, 0, w*h*4)
		for y := 0; y < h; y++ {
			start := y * img.Stride
			pix = append(pix, img.Pix[start:start+w*4]...)
		}
	}
	return TextureStagingData{Pixels: pix, Width: uint32(w), Height: uint32(h)}
}

// DecodeImage decodes PNG, JPEG, BMP or TIFF bytes into RGBA staging data.
//
// Parameters:
//   - name: the asset path, used for error reporting
//   - data: the encoded image bytes
//
// Returns:
//   - TextureStagingData: the decoded pixels
//   - error: *ImageDecodeError if the bytes are not a supported image
func DecodeImage(name string, data []byte) (TextureStagingData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, &ImageDecodeError{Path: name, Err: err}
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return RGBAStaging(rgba), nil
}
