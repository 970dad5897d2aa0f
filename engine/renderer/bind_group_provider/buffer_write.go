package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/engine/renderer/gpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Offset   uint64
	Data     []byte
}

// WriteBuffers queues every write. Writes whose binding holds no buffer are skipped.
//
// Parameters:
//   - queue: the queue to write through
//   - writes: the writes, applied in order
//
// Returns:
//   - error: the first queue failure, wrapped with the provider label and binding
func WriteBuffers(queue gpu.Queue, writes []BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if err := queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("write %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
