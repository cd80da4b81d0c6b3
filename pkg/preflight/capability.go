package preflight

import (
	_ "embed"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// CapabilityTableEnv optionally points at a YAML file overriding the built-in
// device capability table.
const CapabilityTableEnv = "PREFLIGHT_CAPABILITY_TABLE"

//go:embed capabilities.yaml
var defaultCapabilityYAML []byte

// Compute precisions the engine knows how to derive from a model config.
const (
	DTypeAuto     = "auto"
	DTypeFloat32  = "float32"
	DTypeFloat16  = "float16"
	DTypeBFloat16 = "bfloat16"
)

// DeviceSpec describes one device type in the capability table.
type DeviceSpec struct {
	// Primary marks the primary accelerator type: the one with a JIT kernel-compiler
	// path and hardware-generation gates.
	Primary bool `yaml:"primary"`

	// BackendLibrary names the hardware-extension integration library an
	// alternative accelerator requires, if any.
	BackendLibrary string `yaml:"backend_library"`

	// BFloat16MinCapability is the minimum compute-capability major version for
	// bfloat16 support. Zero means capability does not decide it.
	BFloat16MinCapability int `yaml:"bfloat16_min_capability"`

	// Supports lists precisions unconditionally supported on this device type.
	Supports []string `yaml:"supports"`
}

// CapabilityTable maps device types to their capability descriptions. It is
// configuration data, loaded from YAML, so support for new hardware is a table
// entry rather than a code change.
type CapabilityTable struct {
	Devices map[string]DeviceSpec `yaml:"devices"`
}

// LoadCapabilityTable parses a capability table from a YAML file.
func LoadCapabilityTable(path string) (*CapabilityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read capability table %s", path)
	}
	return parseCapabilityTable(data)
}

func parseCapabilityTable(data []byte) (*CapabilityTable, error) {
	table := &CapabilityTable{}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, errors.Wrap(err, "failed to parse capability table")
	}
	if len(table.Devices) == 0 {
		return nil, errors.New("capability table declares no devices")
	}
	return table, nil
}

// DefaultCapabilityTable returns the built-in capability table, or the one pointed
// at by CapabilityTableEnv if set. A broken override falls back to the built-in
// table with a warning: the pre-flight gate shouldn't be disabled by a typo in an
// optional file.
func DefaultCapabilityTable() *CapabilityTable {
	if path := os.Getenv(CapabilityTableEnv); path != "" {
		table, err := LoadCapabilityTable(path)
		if err == nil {
			return table
		}
		klog.Warningf("Ignoring capability table override %s=%s: %v", CapabilityTableEnv, path, err)
	}
	table, err := parseCapabilityTable(defaultCapabilityYAML)
	if err != nil {
		// The embedded table is part of the build; failing to parse it is a bug.
		panic(err)
	}
	return table
}

// IsPrimary reports whether deviceType is the primary accelerator type.
func (t *CapabilityTable) IsPrimary(deviceType string) bool {
	return t.Devices[deviceType].Primary
}

// SupportsBFloat16 reports whether the device type supports bfloat16 compute,
// consulting caps for the hardware generation where the table requires it.
func (t *CapabilityTable) SupportsBFloat16(deviceType string, caps CapabilitySource) (bool, error) {
	spec, ok := t.Devices[deviceType]
	if !ok {
		return false, errors.Errorf("unknown device type %q", deviceType)
	}
	if slices.Contains(spec.Supports, DTypeBFloat16) {
		return true, nil
	}
	if spec.BFloat16MinCapability > 0 {
		major, _, err := caps.ComputeCapability()
		if err != nil {
			return false, errors.WithMessagef(err, "failed to read the compute capability of device type %q", deviceType)
		}
		return major >= spec.BFloat16MinCapability, nil
	}
	return false, nil
}
