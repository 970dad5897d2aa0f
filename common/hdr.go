package common

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// HDRTexelSize is the size in bytes of one rgba32float texel produced by DecodeHDR.
const HDRTexelSize = 16

var (
	errHDRSignature = errors.New("missing #?RADIANCE signature")
	errHDRTruncated = errors.New("truncated pixel data")
)

// DecodeHDR decodes a Radiance RGBE (.hdr) image into rgba32float texels with alpha 1. Both flat and new-style
// run-length encoded scanlines are accepted; rows are returned top to bottom.
//
// Parameters:
//   - name: the file name, used in errors
//   - data: the file contents
//
// Returns:
//   - TextureStagingData: little-endian float32 RGBA pixels, HDRTexelSize bytes per texel
//   - error: *ImageDecodeError if the bytes are not a supported Radiance image
func DecodeHDR(name string, data []byte) (TextureStagingData, error) {
	width, height, bottomUp, body, err := parseHDRHeader(data)
	if err != nil {
		return TextureStagingData{}, &ImageDecodeError{Path: name, Err: err}
	}

	pixels := make([]byte, width*height*HDRTexelSize)
	scanline := make([]byte, width*4)
	for y := 0; y < height; y++ {
		body, err = readHDRScanline(body, scanline)
		if err != nil {
			return TextureStagingData{}, &ImageDecodeError{Path: name, Err: fmt.Errorf("row %d: %w", y, err)}
		}
		row := y
		if bottomUp {
			row = height - 1 - y
		}
		out := pixels[row*width*HDRTexelSize:]
		for x := 0; x < width; x++ {
			r, g, b := rgbeToFloat(scanline[x*4], scanline[x*4+1], scanline[x*4+2], scanline[x*4+3])
			texel := out[x*HDRTexelSize:]
			binary.LittleEndian.PutUint32(texel[0:], math.Float32bits(r))
			binary.LittleEndian.PutUint32(texel[4:], math.Float32bits(g))
			binary.LittleEndian.PutUint32(texel[8:], math.Float32bits(b))
			binary.LittleEndian.PutUint32(texel[12:], math.Float32bits(1))
		}
	}
	return TextureStagingData{Pixels: pixels, Width: uint32(width), Height: uint32(height)}, nil
}

// parseHDRHeader reads the header lines and the resolution line, returning the remaining pixel bytes.
func parseHDRHeader(data []byte) (width, height int, bottomUp bool, body []byte, err error) {
	line, rest, ok := bytes.Cut(data, []byte{'\n'})
	if !ok || !(bytes.HasPrefix(line, []byte("#?RADIANCE")) || bytes.HasPrefix(line, []byte("#?RGBE"))) {
		return 0, 0, false, nil, errHDRSignature
	}
	for {
		line, rest, ok = bytes.Cut(rest, []byte{'\n'})
		if !ok {
			return 0, 0, false, nil, errors.New("header not terminated")
		}
		text := strings.TrimSpace(string(line))
		if text == "" {
			break
		}
		if format, found := strings.CutPrefix(text, "FORMAT="); found && format != "32-bit_rle_rgbe" {
			return 0, 0, false, nil, fmt.Errorf("unsupported format %q", format)
		}
	}

	line, rest, ok = bytes.Cut(rest, []byte{'\n'})
	if !ok {
		return 0, 0, false, nil, errors.New("missing resolution line")
	}
	fields := strings.Fields(string(line))
	if len(fields) != 4 || fields[2] != "+X" || (fields[0] != "-Y" && fields[0] != "+Y") {
		return 0, 0, false, nil, fmt.Errorf("unsupported resolution %q", string(line))
	}
	height, err = strconv.Atoi(fields[1])
	if err != nil || height <= 0 {
		return 0, 0, false, nil, fmt.Errorf("invalid height %q", fields[1])
	}
	width, err = strconv.Atoi(fields[3])
	if err != nil || width <= 0 {
		return 0, 0, false, nil, fmt.Errorf("invalid width %q", fields[3])
	}
	return width, height, fields[0] == "+Y", rest, nil
}

// readHDRScanline fills dst with one row of interleaved RGBE bytes.
func readHDRScanline(src, dst []byte) ([]byte, error) {
	width := len(dst) / 4
	if width < 8 || width > 0x7fff || len(src) < 4 || src[0] != 2 || src[1] != 2 || src[2]&0x80 != 0 {
		if len(src) < len(dst) {
			return nil, errHDRTruncated
		}
		copy(dst, src)
		return src[len(dst):], nil
	}
	if int(src[2])<<8|int(src[3]) != width {
		return nil, fmt.Errorf("scanline width %d, want %d", int(src[2])<<8|int(src[3]), width)
	}
	src = src[4:]

	// Each channel is run-length encoded separately.
	for c := 0; c < 4; c++ {
		for x := 0; x < width; {
			if len(src) == 0 {
				return nil, errHDRTruncated
			}
			count := int(src[0])
			src = src[1:]
			if count > 128 {
				count -= 128
				if len(src) == 0 || x+count > width {
					return nil, errHDRTruncated
				}
				for i := 0; i < count; i++ {
					dst[(x+i)*4+c] = src[0]
				}
				src = src[1:]
			} else {
				if count == 0 || len(src) < count || x+count > width {
					return nil, errHDRTruncated
				}
				for i := 0; i < count; i++ {
					dst[(x+i)*4+c] = src[i]
				}
				src = src[count:]
			}
			x += count
		}
	}
	return src, nil
}

// rgbeToFloat expands a shared-exponent texel. A zero exponent is black.
func rgbeToFloat(r, g, b, e byte) (float32, float32, float32) {
	if e == 0 {
		return 0, 0, 0
	}
	scale := math32.Ldexp(1, int(e)-136)
	return float32(r) * scale, float32(g) * scale, float32(b) * scale
}
