package hostlib

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HasNvidiaGPU tries to guess if there is an actual Nvidia GPU installed (as opposed to only the
// drivers installed, but no actual hardware).
// It does that by checking for the presence of the device files in /dev/nvidia*.
var HasNvidiaGPU = sync.OnceValue[bool](func() bool {
	matches, err := filepath.Glob("/dev/nvidia*")
	if err != nil {
		klog.Errorf("Failed to figure out if there is an Nvidia GPU installed while searching for files matching \"/dev/nvidia*\": %v", err)
	} else if len(matches) > 0 {
		return true
	}

	// Execute the nvidia-smi command if present
	_, lookErr := exec.LookPath("nvidia-smi")
	if lookErr != nil {
		return false
	}
	cmd := exec.Command("nvidia-smi")
	output, cmdErr := cmd.CombinedOutput()
	if cmdErr != nil {
		return false
	}
	return strings.Contains(string(output), "NVIDIA-SMI")
})

// NVMLSource answers compute-capability and driver queries through NVML.
//
// Every call initializes and shuts down NVML: the pre-flight probes run once per process,
// there is nothing to be gained from keeping the library attached.
type NVMLSource struct{}

// ComputeCapability returns the CUDA compute capability of device 0.
func (NVMLSource) ComputeCapability() (major, minor int, err error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return 0, 0, errors.Errorf("failed to initialize NVML: %s", nvml.ErrorString(ret))
	}
	defer func() { _ = nvml.Shutdown() }()

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		return 0, 0, errors.Errorf("failed to get a handle to GPU device 0: %s", nvml.ErrorString(ret))
	}
	major, minor, ret = device.GetCudaComputeCapability()
	if ret != nvml.SUCCESS {
		return 0, 0, errors.Errorf("failed to read the compute capability of GPU device 0: %s", nvml.ErrorString(ret))
	}
	return major, minor, nil
}

// DriverVersion returns the installed Nvidia driver version.
func (NVMLSource) DriverVersion() (string, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return "", errors.Errorf("failed to initialize NVML: %s", nvml.ErrorString(ret))
	}
	defer func() { _ = nvml.Shutdown() }()

	version, ret := nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", errors.Errorf("failed to read the Nvidia driver version: %s", nvml.ErrorString(ret))
	}
	return version, nil
}
