package sim

import "sync"

const (
	commandQueueDepthMetricKey    = "sim_command_queue_depth"
	commandQueueOverflowMetricKey = "sim_command_queue_overflow_total"
)

// CommandBuffer stages controller commands between ticks in a fixed-size
// ring. Producers are the per-connection read loops; the only consumer is
// the loop goroutine draining a full tick's worth at once.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []Command
	head    int
	count   int
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewCommandBuffer constructs a ring holding at most capacity commands.
func NewCommandBuffer(capacity int, metrics telemetryMetrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		ring:    make([]Command, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of commands the buffer can hold.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.ring)
}

// Push stages a command, returning false when the ring is full. Overflow is
// counted so saturation shows up in diagnostics.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.ring) {
		if b.metrics != nil {
			b.metrics.Add(commandQueueOverflowMetricKey, 1)
		}
		return false
	}
	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	b.storeDepthLocked()
	return true
}

// Drain returns every staged command in arrival order and empties the ring.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		commands[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.head = 0
	b.count = 0
	b.storeDepthLocked()
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) storeDepthLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(commandQueueDepthMetricKey, uint64(b.count))
}
