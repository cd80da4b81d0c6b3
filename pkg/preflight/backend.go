package preflight

import (
	"fmt"

	"k8s.io/klog/v2"
)

// checkBackend verifies that the hardware-extension integration of an alternative
// accelerator resolves on the host. Device types with no backend library in the
// capability table (the primary accelerator, cpu, unknown types) are a no-op:
// their runtime path is validated by checkRuntime instead.
func (c *Checker) checkBackend(deviceType string) {
	spec, ok := c.Table.Devices[deviceType]
	if !ok || spec.BackendLibrary == "" {
		return
	}
	klog.V(1).Infof("Checking <Backend> integration for device type %q.", deviceType)
	if _, err := c.Locate(spec.BackendLibrary); err != nil {
		c.fatal(err, "Backend", fmt.Sprintf(
			"The %q device type requires the %s integration library.\n%s",
			deviceType, spec.BackendLibrary, defaultRemediation))
	}
}
