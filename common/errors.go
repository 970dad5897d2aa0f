package common

import (
	"errors"
	"fmt"
)

var (
	// ErrSingularTransform is raised when a model matrix cannot be inverted. Scale is expected to be non-zero,
	// so this is treated as a programming error.
	ErrSingularTransform = errors.New("model matrix was not invertible")
	// ErrMissingComponent is returned when an entity lacks a component the caller requires.
	ErrMissingComponent = errors.New("entity is missing a required component")
	// ErrCacheMiss is returned when a resource expected to be cached is absent.
	ErrCacheMiss = errors.New("resource not found in cache")
)

// GPUErrorKind classifies device level failures.
type GPUErrorKind int

const (
	// GPUErrorAdapterNotFound indicates no compatible adapter could be requested.
	GPUErrorAdapterNotFound GPUErrorKind = iota
	// GPUErrorDeviceRequestFailed indicates the adapter refused the device request.
	GPUErrorDeviceRequestFailed
	// GPUErrorSurfaceUnsupported indicates the surface reports no usable format or configuration.
	GPUErrorSurfaceUnsupported
)

func (k GPUErrorKind) String() string {
	switch k {
	case GPUErrorAdapterNotFound:
		return "adapter not found"
	case GPUErrorDeviceRequestFailed:
		return "device request failed"
	case GPUErrorSurfaceUnsupported:
		return "surface configuration unsupported"
	default:
		return "unknown gpu error"
	}
}

// GPUError is a construction-time device failure. It is not recoverable mid-session.
type GPUError struct {
	Kind GPUErrorKind
	Err  error
}

func (e *GPUError) Error() string {
	if e.Err == nil {
		return "gpu: " + e.Kind.String()
	}
	return fmt.Sprintf("gpu: %s: %v", e.Kind, e.Err)
}

func (e *GPUError) Unwrap() error {
	return e.Err
}

// AssetLoadError reports an asset that exists but could not be loaded or parsed.
type AssetLoadError struct {
	Path string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("failed to load asset %q: %v", e.Path, e.Err)
}

func (e *AssetLoadError) Unwrap() error {
	return e.Err
}

// FileSystemError reports a failure to read from the asset tree.
type FileSystemError struct {
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("filesystem error at %q: %v", e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// ImageDecodeError reports image bytes that could not be decoded.
type ImageDecodeError struct {
	Path string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %q: %v", e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}
