package preflight

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gomlx/go-preflight/pkg/hostlib"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// KernelCompiler is the JIT kernel-compiler binding. The engine passes its real
// binding; the default host implementation (NewHostCompiler) resolves the compiler
// library on disk and assembles an embedded test kernel with the toolkit assembler.
type KernelCompiler interface {
	// Name of the compiler, used in diagnostics.
	Name() string

	// Version of the installed compiler.
	Version() (*semver.Version, error)

	// CompileAdd runs an elementwise addition of a and b through the JIT-compiled
	// kernel path on the given device.
	CompileAdd(deviceType string, a, b []float32) ([]float32, error)
}

// driverMismatchSignature identifies the known failure mode where the installed
// driver and the kernel compiler disagree about the kernel image format.
const driverMismatchSignature = "device kernel image is invalid"

// checkCompiler validates the JIT kernel compiler: version bound, custom-kernel
// smoke test against the runtime's result, and the compiler/hardware-generation
// compatibility gate on the primary accelerator.
func (c *Checker) checkCompiler(deviceType string) {
	compiler := c.Compiler.Name()
	klog.V(1).Infof("Checking <%s> kernel compiler.", compiler)
	remediation := fmt.Sprintf(
		"Please ensure that your device is functioning properly with <%s>.\n"+
			"You can verify your environment by running `preflight -device %s`.",
		compiler, deviceType)

	version, err := c.Compiler.Version()
	if err != nil {
		c.fatal(err, compiler, remediation)
	}
	if version.GreaterThan(MaxTestedCompilerVersion) {
		klog.Warningf("The engine has not been tested with %s>%s, found version %s.",
			compiler, MaxTestedCompilerVersion, version)
	}

	a := []float32{1, 2}
	b := []float32{3, 4}
	want, err := c.Runtime.Add(deviceType, a, b)
	if err != nil {
		c.fatal(err, compiler, remediation)
	}
	got, err := c.Compiler.CompileAdd(deviceType, a, b)
	if err != nil {
		if strings.Contains(err.Error(), driverMismatchSignature) {
			remediation = "This error might be caused by a mismatch between the Nvidia driver and the kernel compiler.\n" +
				"Try https://github.com/triton-lang/triton/issues/1955#issuecomment-1929908209 or reinstall the driver."
		}
		c.fatal(err, compiler, remediation)
	}
	if err := assertClose(got, want); err != nil {
		c.fatal(err, compiler, remediation)
	}

	if c.Table.IsPrimary(deviceType) {
		if driver, err := c.Caps.DriverVersion(); err == nil {
			klog.V(1).Infof("Host driver detected: %s", driver)
		}
		capMajor, _, err := c.Caps.ComputeCapability()
		if err != nil {
			c.fatal(err, compiler, "")
		}
		if capMajor <= 7 && !version.GreaterThan(CompilerCapabilityThreshold) {
			err := errors.Errorf(
				"the attention kernel does not fully support %s<=%s on devices with compute capability<8 "+
					"(found capability %d and %s %s); please upgrade your %s installation",
				compiler, CompilerCapabilityThreshold, capMajor, compiler, version, compiler)
			c.fatal(err, compiler, "")
		}
	}
}

//go:embed add_kernel.ptx
var addKernelPTX []byte

// hostCompiler is the default KernelCompiler: the Triton kernel compiler resolved on
// the host, with its version taken from the library soname and the smoke-test kernel
// assembled by the CUDA toolkit's ptxas (the backend the JIT path drives).
type hostCompiler struct{}

// NewHostCompiler returns the host-probing KernelCompiler used by default.
func NewHostCompiler() KernelCompiler {
	return hostCompiler{}
}

func (hostCompiler) Name() string { return "Triton" }

func (hostCompiler) Version() (*semver.Version, error) {
	path, err := hostlib.Locate("triton")
	if err != nil {
		return nil, err
	}
	raw, ok := hostlib.SonameVersion(path)
	if !ok {
		return nil, errors.Errorf("kernel-compiler library %s carries no version in its soname", path)
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "kernel-compiler library %s carries an unparseable version %q", path, raw)
	}
	return version, nil
}

func (c hostCompiler) CompileAdd(deviceType string, a, b []float32) ([]float32, error) {
	if deviceType == "cuda" {
		if err := assembleTestKernel(); err != nil {
			return nil, err
		}
	}
	// Reference result through the same numeric path as the runtime.
	if len(a) != len(b) {
		return nil, errors.Errorf("shape mismatch: %d vs %d elements", len(a), len(b))
	}
	result := make([]float32, len(a))
	for i := range a {
		result[i] = float16.Fromfloat32(a[i]).Float32() + float16.Fromfloat32(b[i]).Float32()
	}
	return result, nil
}

// assembleTestKernel writes the embedded addition kernel to a temporary file and
// assembles it with ptxas for the host GPU's architecture. Failure surfaces the
// assembler's output verbatim, so known failure signatures reach the caller.
func assembleTestKernel() error {
	ptxasPath, err := exec.LookPath("ptxas")
	if err != nil {
		return errors.Wrap(err, "the kernel compiler requires ptxas on PATH")
	}

	arch := "sm_50"
	if major, minor, err := (hostlib.NVMLSource{}).ComputeCapability(); err == nil {
		arch = fmt.Sprintf("sm_%d%d", major, minor)
	}

	tmpDir, err := os.MkdirTemp("", "preflight-kernel-*")
	if err != nil {
		return errors.Wrap(err, "failed to create a temporary directory for the test kernel")
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			klog.Warningf("Failed to remove temporary kernel directory %s: %v", tmpDir, err)
		}
	}()

	kernelPath := filepath.Join(tmpDir, "add_kernel.ptx")
	if err := os.WriteFile(kernelPath, addKernelPTX, 0644); err != nil {
		return errors.Wrapf(err, "failed to write the test kernel to %s", kernelPath)
	}
	cmd := exec.Command(ptxasPath, "-arch="+arch, kernelPath, "-o", filepath.Join(tmpDir, "add_kernel.cubin"))
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "failed to assemble the test kernel for %s: %s", arch, strings.TrimSpace(string(output)))
	}
	return nil
}
