package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestDefaultCapabilityTable(t *testing.T) {
	table := DefaultCapabilityTable()
	assertTrue(t, table.IsPrimary("cuda"))
	assertFalse(t, table.IsPrimary("cpu"))
	assertFalse(t, table.IsPrimary("never-heard-of-it"))
	assertEqual(t, "dlinfer_ascend", table.Devices["ascend"].BackendLibrary)
	assertEqual(t, "dlinfer_npu", table.Devices["npu"].BackendLibrary)
	assertEqual(t, "dlinfer_maca", table.Devices["maca"].BackendLibrary)
}

func TestSupportsBFloat16(t *testing.T) {
	table := DefaultCapabilityTable()

	// cuda: decided by the hardware generation.
	supported, err := table.SupportsBFloat16("cuda", fakeCaps{major: 8})
	requireNoError(t, err)
	assertTrue(t, supported)
	supported, err = table.SupportsBFloat16("cuda", fakeCaps{major: 7})
	requireNoError(t, err)
	assertFalse(t, supported)

	// cpu: unconditionally supported per the table.
	supported, err = table.SupportsBFloat16("cpu", fakeCaps{capErr: errors.New("no NVML")})
	requireNoError(t, err)
	assertTrue(t, supported)

	// Devices with neither a supports list nor a capability rule don't support it.
	supported, err = table.SupportsBFloat16("ascend", fakeCaps{})
	requireNoError(t, err)
	assertFalse(t, supported)

	// Unknown devices and capability read failures surface as errors.
	_, err = table.SupportsBFloat16("never-heard-of-it", fakeCaps{})
	requireErrorContains(t, err, "unknown device type")
	_, err = table.SupportsBFloat16("cuda", fakeCaps{capErr: errors.New("NVML unavailable")})
	requireErrorContains(t, err, "NVML unavailable")
}

func TestLoadCapabilityTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	requireNoError(t, os.WriteFile(path, []byte(`
devices:
  rocm:
    primary: true
    bfloat16_min_capability: 9
`), 0644))
	table, err := LoadCapabilityTable(path)
	requireNoError(t, err)
	assertTrue(t, table.IsPrimary("rocm"))
	assertEqual(t, 9, table.Devices["rocm"].BFloat16MinCapability)

	_, err = LoadCapabilityTable(filepath.Join(t.TempDir(), "missing.yaml"))
	requireError(t, err)

	requireNoError(t, os.WriteFile(path, []byte("devices: {}"), 0644))
	_, err = LoadCapabilityTable(path)
	requireErrorContains(t, err, "no devices")
}

func TestDefaultCapabilityTableOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	requireNoError(t, os.WriteFile(path, []byte(`
devices:
  tpu:
    supports: [bfloat16]
`), 0644))
	t.Setenv(CapabilityTableEnv, path)
	table := DefaultCapabilityTable()
	supported, err := table.SupportsBFloat16("tpu", fakeCaps{})
	requireNoError(t, err)
	assertTrue(t, supported)

	// A broken override falls back to the built-in table.
	t.Setenv(CapabilityTableEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	table = DefaultCapabilityTable()
	assertTrue(t, table.IsPrimary("cuda"))
}
