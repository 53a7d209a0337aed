package backend

import (
	"errors"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/program"
	"github.com/gogpu/gpucmd/renderpass"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend name constants.
const (
	// BackendHAL is the name of the GPU backend built on gogpu/wgpu hal.
	BackendHAL = "hal"
	// BackendTrace is the name of the backend that records executor calls
	// as text.
	BackendTrace = "trace"
)

// Backend owns a device and creates executors for render targets.
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type Backend interface {
	// Name returns the backend identifier (e.g., "hal", "trace").
	Name() string

	// Init initializes the backend.
	// This must be called before NewExecutor.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Caps returns the device capabilities. It is valid after Init.
	Caps() *gpucore.Caps

	// NewExecutor creates an executor drawing into a target of the given
	// size and format.
	NewExecutor(target program.Target) (Executor, error)
}

// Executor is a renderpass.Executor owned by a backend.
type Executor interface {
	renderpass.Executor

	// Err returns the first backend error of the last pass, or nil.
	Err() error

	// Release frees the executor's render target and per-pass resources.
	Release()
}
