package gpu

import "fmt"

// DynamicBuffer is a grow-only GPU buffer with a CPU staging copy and a dirty flag. Staging may reallocate the
// GPU side; uploading is a separate queued write so that staging several times in one frame costs one write.
type DynamicBuffer struct {
	label    string
	usage    BufferUsage
	buffer   Buffer
	data     []byte
	count    int
	capacity uint64
	dirty    bool
	// allocations counts how many GPU buffers were created over the lifetime of this DynamicBuffer.
	allocations int
}

// NewDynamicBuffer creates an empty DynamicBuffer. No GPU memory is allocated until the first Stage.
//
// Parameters:
//   - label: the debug label for created buffers
//   - usage: the usage flags; CopyDst is always added
//
// Returns:
//   - *DynamicBuffer: the new buffer
func NewDynamicBuffer(label string, usage BufferUsage) *DynamicBuffer {
	return &DynamicBuffer{
		label: label,
		usage: usage | BufferUsageCopyDst,
	}
}

// Stage replaces the CPU-side contents and makes sure the GPU buffer can hold them. A buffer is created on first
// use and reallocated only when data outgrows the current capacity; it never shrinks. The buffer is marked dirty.
//
// Parameters:
//   - device: the device used for (re)allocation
//   - data: the packed records
//   - count: the number of records in data
//
// Returns:
//   - bool: true if a GPU buffer was created or reallocated
//   - error: an error if allocation failed; the previous buffer, contents and count are kept in that case
func (b *DynamicBuffer) Stage(device Device, data []byte, count int) (bool, error) {
	needed := uint64(len(data))
	if needed == 0 || (b.buffer != nil && needed <= b.capacity) {
		b.commit(data, count)
		return false, nil
	}

	buf, err := device.CreateBuffer(BufferDescriptor{
		Label: b.label,
		Size:  needed,
		Usage: b.usage,
	})
	if err != nil {
		return false, fmt.Errorf("allocate %s (%d bytes): %w", b.label, needed, err)
	}
	if b.buffer != nil {
		b.buffer.Release()
	}
	b.buffer = buf
	b.capacity = needed
	b.allocations++
	b.commit(data, count)
	return true, nil
}

// commit records staged contents once the GPU side is known to fit them.
func (b *DynamicBuffer) commit(data []byte, count int) {
	b.data = data
	b.count = count
	b.dirty = true
}

// Reset sets the record count to zero without touching GPU memory, so draws skip the buffer.
func (b *DynamicBuffer) Reset() {
	b.data = b.data[:0]
	b.count = 0
	b.dirty = false
}

// Upload writes the staged bytes through the queue if dirty and clears the flag.
//
// Parameters:
//   - queue: the queue to write through
//
// Returns:
//   - error: an error if the write could not be queued; the buffer stays dirty
func (b *DynamicBuffer) Upload(queue Queue) error {
	if !b.dirty {
		return nil
	}
	if b.buffer == nil || len(b.data) == 0 {
		b.dirty = false
		return nil
	}
	if err := queue.WriteBuffer(b.buffer, 0, b.data); err != nil {
		return fmt.Errorf("upload %s: %w", b.label, err)
	}
	b.dirty = false
	return nil
}

// Release frees the GPU buffer.
func (b *DynamicBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
	b.capacity = 0
	b.count = 0
}

func (b *DynamicBuffer) Buffer() Buffer {
	return b.buffer
}

func (b *DynamicBuffer) Count() int {
	return b.count
}

func (b *DynamicBuffer) Capacity() uint64 {
	return b.capacity
}

func (b *DynamicBuffer) Dirty() bool {
	return b.dirty
}

func (b *DynamicBuffer) Allocations() int {
	return b.allocations
}
