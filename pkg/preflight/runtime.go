package preflight

import (
	"github.com/Masterminds/semver/v3"
	"github.com/gomlx/go-preflight/pkg/hostlib"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// Runtime is the tensor-compute runtime binding used by the smoke tests. The engine
// passes its real device binding; the default host implementation (NewHostRuntime)
// resolves the runtime plugin on disk and computes through a reference path.
type Runtime interface {
	// Name of the runtime, used in diagnostics.
	Name() string

	// Version of the installed runtime, or nil if the installation doesn't carry one.
	Version() (*semver.Version, error)

	// Add allocates a and b on the given device, adds them elementwise and returns
	// the result transferred back to the host.
	Add(deviceType string, a, b []float32) ([]float32, error)
}

// checkRuntime allocates two small tensors on the target device, adds them and
// asserts the exact expected result. Any failure is fatal.
func (c *Checker) checkRuntime(deviceType string) {
	klog.V(1).Infof("Checking <%s> runtime.", c.Runtime.Name())
	if version, err := c.Runtime.Version(); err == nil && version != nil {
		klog.V(1).Infof("Runtime <%s> version %s.", c.Runtime.Name(), version)
	}
	a := []float32{1, 2}
	b := []float32{3, 4}
	got, err := c.Runtime.Add(deviceType, a, b)
	if err != nil {
		c.fatal(err, c.Runtime.Name(), "")
	}
	if err := assertClose(got, []float32{4, 6}); err != nil {
		c.fatal(err, c.Runtime.Name(), "")
	}
}

// assertClose compares a smoke-test result against the expected constant tensor.
// The inputs are chosen to be exactly representable, so the tolerance is exact.
func assertClose(got, want []float32) error {
	if len(got) != len(want) {
		return errors.Errorf("smoke test returned %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return errors.Errorf("smoke test result mismatch at element %d: got %v, want %v", i, got[i], want[i])
		}
	}
	return nil
}

// hostRuntime is the default Runtime: it resolves the tensor-runtime plugin for the
// device on disk and validates the numeric path (including the float16 round-trip the
// device path uses for activations) on the host. Actual device execution belongs to
// the engine's own binding, which replaces this implementation when present.
type hostRuntime struct{}

// NewHostRuntime returns the host-probing Runtime used by default.
func NewHostRuntime() Runtime {
	return hostRuntime{}
}

func (hostRuntime) Name() string { return "PJRT" }

func (hostRuntime) Version() (*semver.Version, error) {
	path, err := hostlib.LocatePlugin("cpu")
	if err != nil {
		return nil, nil // No versioned plugin found: nothing to report.
	}
	raw := hostlib.PluginVersion(path)
	if raw == "" {
		return nil, nil
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "runtime plugin %s carries an unparseable version %q", path, raw)
	}
	return version, nil
}

func (hostRuntime) Add(deviceType string, a, b []float32) ([]float32, error) {
	if _, err := hostlib.LocatePlugin(deviceType); err != nil {
		return nil, err
	}
	if deviceType == "cuda" && !hostlib.HasNvidiaGPU() {
		return nil, errors.Errorf("the %q runtime plugin is installed but no Nvidia GPU was found on this host", deviceType)
	}
	if len(a) != len(b) {
		return nil, errors.Errorf("shape mismatch: %d vs %d elements", len(a), len(b))
	}
	// Reference compute path: activations round-trip through float16 the same way the
	// device path stores them.
	result := make([]float32, len(a))
	for i := range a {
		ha := float16.Fromfloat32(a[i])
		hb := float16.Fromfloat32(b[i])
		result[i] = ha.Float32() + hb.Float32()
	}
	return result, nil
}
