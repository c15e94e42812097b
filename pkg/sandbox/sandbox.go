package sandbox

import (
	"context"
	"math/rand"
	"time"

	"github.com/dop251/goja"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
	"github.com/datafrage-dev/datafrage/pkg/debug"
)

const (
	// defaultTimeout is the wall-clock budget for a single execution.
	defaultTimeout = 5 * time.Second

	// maxCallStackSize bounds the VM call stack depth.
	maxCallStackSize = 500

	// randSeed makes Math.random deterministic inside the namespace.
	randSeed = 12345
)

// Config holds sandbox settings.
type Config struct {
	// Timeout is the wall-clock execution budget. Zero means the default.
	Timeout time.Duration
}

// Sandbox runs code fragments in per-execution isolated namespaces.
// The zero value is not usable; create instances with New. A Sandbox is
// stateless and safe for concurrent use: every Execute call builds and
// discards its own VM.
type Sandbox struct {
	cfg Config
}

// New creates a sandbox with the given configuration.
func New(cfg Config) *Sandbox {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Sandbox{cfg: cfg}
}

// Capture is the raw output of one execution: blocks in creation order.
type Capture struct {
	Blocks []api.Block
}

// interrupt markers distinguish budget exhaustion from caller
// cancellation when the VM is interrupted.
type interruptReason int

const (
	interruptTimeout interruptReason = iota
	interruptCancelled
)

// Execute runs the code fragment against the working frame and returns
// the captured output. On failure the returned error is an *api.Error
// carrying the classified kind and the offending fragment.
func (s *Sandbox) Execute(ctx context.Context, code string, frame *dataset.Working) (*Capture, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	seeded := rand.New(rand.NewSource(randSeed))
	vm.SetRandSource(func() float64 { return seeded.Float64() })

	disableDangerousGlobals(vm)

	r := &run{vm: vm, frame: frame}
	r.bind()

	debug.Log("sandbox", "executing fragment", "code_len", len(code), "timeout", s.cfg.Timeout)
	debug.Raw("sandbox", code)

	// Enforce the wall-clock budget and caller cancellation through the
	// VM interrupt mechanism. The done channel keeps the watcher from
	// outliving the execution.
	timer := time.AfterFunc(s.cfg.Timeout, func() {
		vm.Interrupt(interruptTimeout)
	})
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(interruptCancelled)
		case <-done:
		}
	}()

	_, err := vm.RunString(code)
	if err != nil {
		return nil, classify(err, code, s.cfg.Timeout)
	}

	return &Capture{Blocks: r.blocks}, nil
}

// disableDangerousGlobals removes JS features that would widen the
// namespace beyond the allow-listed surface.
func disableDangerousGlobals(vm *goja.Runtime) {
	vm.Set("eval", goja.Undefined())

	// The Function constructor is equivalent to eval: shadow the
	// prototype route to it, then remove the global itself.
	_, _ = vm.RunString(`(function() {
		try {
			Object.defineProperty(Function.prototype, 'constructor', {
				value: function() { throw new TypeError('Function constructor is disabled'); },
				writable: false,
				configurable: false
			});
		} catch (e) {}
	})();`)
	vm.Set("Function", goja.Undefined())
}
