package preflight

import (
	"github.com/gomlx/go-preflight/pkg/modelcfg"
	"k8s.io/klog/v2"
)

const (
	// quantMethodAWQ is the quantization method with a dedicated kernel path.
	quantMethodAWQ = "awq"

	// awqLibrary holds the base AWQ dequantization kernels; required.
	awqLibrary = "awq"

	// awqExtLibrary holds the accelerated AWQ kernels; optional, the engine falls
	// back to the slower base kernels without it.
	awqExtLibrary = "awq_ext"
)

// checkQuantization verifies the quantization kernel libraries for models that declare
// a quantization method with a dedicated kernel path. Only applies on the primary
// accelerator: other device types run the generic dequantization path.
func (c *Checker) checkQuantization(config *modelcfg.ModelConfig, deviceType string) {
	if !c.Table.IsPrimary(deviceType) {
		return
	}
	qc := config.QuantizationConfig
	if qc == nil || qc.QuantMethod != quantMethodAWQ {
		return
	}
	klog.V(1).Info("Checking <awq> kernel libraries.")
	if _, err := c.Locate(awqLibrary); err != nil {
		c.fatal(err, "awq", "")
	}
	if _, err := c.Locate(awqExtLibrary); err != nil {
		klog.V(1).Infof("Accelerated awq kernels unavailable: %+v", err)
		klog.Warningf("Failed to locate the accelerated awq kernels (%s). "+
			"Try reinstalling them from source: https://github.com/casper-hansen/AutoAWQ_kernels", awqExtLibrary)
	}
}
