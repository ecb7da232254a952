package protocol

import "math"

// Buffer sizing for MessageReader.
const (
	// DefaultInitialBufferSize is the initial receive buffer size.
	DefaultInitialBufferSize = 1024

	// DefaultGrowthStep is how much the receive buffer grows when full.
	DefaultGrowthStep = 1024

	// DefaultChunkSize is the maximum number of bytes requested per read.
	DefaultChunkSize = 1024

	// DefaultMaxMessageSize caps a single message (headers plus any body
	// bytes that arrived with them) at 1MB.
	DefaultMaxMessageSize = 1024 * 1024

	// HardMaxMessageSize is the absolute ceiling. Larger configured values
	// are clamped to it.
	HardMaxMessageSize = 16 * 1024 * 1024
)

// MessageLimits configures how a MessageReader allocates and grows its buffer.
// Use DefaultMessageLimits() for sensible defaults.
type MessageLimits struct {
	// InitialSize is the size of the buffer allocated on first use.
	InitialSize int

	// GrowthStep is added to the buffer size each time it fills up.
	GrowthStep int

	// ChunkSize is the largest read issued to the connection at once.
	ChunkSize int

	// MaxSize is the largest message accepted before ErrMessageTooLarge.
	MaxSize int
}

// DefaultMessageLimits returns the default message limits.
func DefaultMessageLimits() MessageLimits {
	return MessageLimits{
		InitialSize: DefaultInitialBufferSize,
		GrowthStep:  DefaultGrowthStep,
		ChunkSize:   DefaultChunkSize,
		MaxSize:     DefaultMaxMessageSize,
	}
}

// normalize replaces unset or out-of-range values with defaults.
func (l MessageLimits) normalize() MessageLimits {
	if l.InitialSize <= 0 {
		l.InitialSize = DefaultInitialBufferSize
	}
	if l.GrowthStep <= 0 {
		l.GrowthStep = DefaultGrowthStep
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	if l.MaxSize <= 0 {
		l.MaxSize = DefaultMaxMessageSize
	}
	if l.MaxSize > HardMaxMessageSize {
		l.MaxSize = HardMaxMessageSize
	}
	if l.InitialSize > l.MaxSize {
		l.InitialSize = l.MaxSize
	}
	return l
}

// addSize adds each part to total, failing with ErrSizeOverflow instead of
// wrapping around.
func addSize(total int, parts ...int) (int, error) {
	for _, p := range parts {
		if p < 0 || total > math.MaxInt-p {
			return 0, ErrSizeOverflow
		}
		total += p
	}
	return total, nil
}
