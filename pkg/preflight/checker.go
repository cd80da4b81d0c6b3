// Package preflight validates the host's accelerator software stack before the
// inference engine loads a model or serves requests: the tensor-compute runtime,
// the JIT kernel compiler, the model-definition library surface and optional
// low-rank adapter overlays.
//
// The checks are a one-shot validation gate, not a resilient service: any fatal
// mismatch is reported with a framed diagnostic and terminates the process with
// exit status 1. Survivable mismatches (e.g. a compiler newer than the tested
// range) only log a warning.
package preflight

import (
	"io"
	"os"

	"github.com/gomlx/go-preflight/pkg/hostlib"
	"github.com/gomlx/go-preflight/pkg/modelcfg"
	"k8s.io/klog/v2"
)

// CapabilitySource answers hardware-generation queries for the primary accelerator.
// The default implementation is hostlib.NVMLSource.
type CapabilitySource interface {
	// ComputeCapability returns the compute capability of device 0.
	ComputeCapability() (major, minor int, err error)

	// DriverVersion returns the installed accelerator driver version.
	DriverVersion() (string, error)
}

// Checker runs the pre-flight probes. The zero value is not usable, create it with New.
//
// The collaborator fields default to host-probing implementations; the engine replaces
// them with its own device bindings where it has them.
type Checker struct {
	// Runtime is the tensor-compute runtime binding used by the smoke tests.
	Runtime Runtime

	// Compiler is the JIT kernel-compiler binding.
	Compiler KernelCompiler

	// Caps answers compute-capability and driver queries on the primary accelerator.
	Caps CapabilitySource

	// Table describes the known device types and their precision support.
	Table *CapabilityTable

	// ModelLibVersion is the installed model-definition library version.
	// Defaults to modelcfg.Version.
	ModelLibVersion string

	// Locate resolves a host shared library by base name. Defaults to hostlib.Locate.
	Locate func(name string) (string, error)

	// exit terminates the process after a fatal diagnostic. Replaced in tests.
	exit func(code int)

	// stderr receives the framed fatal diagnostic.
	stderr io.Writer
}

// New returns a Checker wired to the host-probing defaults.
func New() *Checker {
	return &Checker{
		Runtime:         NewHostRuntime(),
		Compiler:        NewHostCompiler(),
		Caps:            hostlib.NVMLSource{},
		Table:           DefaultCapabilityTable(),
		ModelLibVersion: modelcfg.Version,
		Locate:          hostlib.Locate,
		exit:            os.Exit,
		stderr:          os.Stderr,
	}
}

// CheckEnv validates the accelerator backend, the tensor-compute runtime and -- on the
// primary accelerator -- the JIT kernel compiler. It terminates the process on any
// fatal mismatch.
func (c *Checker) CheckEnv(deviceType string) {
	klog.Info("Checking environment for the inference engine.")
	c.checkBackend(deviceType)
	c.checkRuntime(deviceType)
	if c.Table.IsPrimary(deviceType) {
		c.checkCompiler(deviceType)
	}
}

// CheckModel validates the model-definition library version and the model's declared
// requirements (minimum library version, compute precision, quantization kernels).
// It terminates the process on any fatal mismatch.
func (c *Checker) CheckModel(modelPath string, trustRemoteCode bool, dtype, deviceType string) {
	klog.Info("Checking model.")
	installed := c.checkModelLibVersion()
	config := c.checkModelConfig(modelPath, trustRemoteCode)
	c.checkModelRequiredVersion(modelPath, config, installed)
	c.checkModelDType(config, dtype, deviceType)
	c.checkQuantization(config, deviceType)
}

// CheckAdapters validates each adapter directory in order. A no-op when the list is
// empty. It terminates the process on the first adapter that fails to load.
func (c *Checker) CheckAdapters(adapterPaths []string) {
	if len(adapterPaths) == 0 {
		return
	}
	klog.Info("Checking adapters.")
	for _, path := range adapterPaths {
		c.checkAdapter(path)
	}
}

// CheckEnv validates the host environment with the default Checker. See Checker.CheckEnv.
func CheckEnv(deviceType string) {
	New().CheckEnv(deviceType)
}

// CheckModel validates model requirements with the default Checker. See Checker.CheckModel.
func CheckModel(modelPath string, trustRemoteCode bool, dtype, deviceType string) {
	New().CheckModel(modelPath, trustRemoteCode, dtype, deviceType)
}

// CheckAdapters validates adapter directories with the default Checker. See Checker.CheckAdapters.
func CheckAdapters(adapterPaths []string) {
	New().CheckAdapters(adapterPaths)
}
