package preflight

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/gomlx/go-preflight/pkg/modelcfg"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// checkModelLibVersion parses the installed model-definition library version and warns
// when it falls outside the tested range. Returns the parsed version.
func (c *Checker) checkModelLibVersion() *semver.Version {
	klog.V(1).Info("Checking <Model> library version.")
	installed, err := semver.NewVersion(c.ModelLibVersion)
	if err != nil {
		c.fatal(errors.Wrapf(err, "failed to parse the installed model library version %q", c.ModelLibVersion),
			"Model", "")
	}
	if !withinTestedRange(installed, MinModelLibraryVersion, MaxModelLibraryVersion) {
		klog.Warningf("The engine requires model library version [%s ~ %s], but found version: %s",
			MinModelLibraryVersion, MaxModelLibraryVersion, installed)
	}
	return installed
}

// checkModelConfig loads the model configuration from its path. Failure is fatal.
func (c *Checker) checkModelConfig(modelPath string, trustRemoteCode bool) *modelcfg.ModelConfig {
	klog.V(1).Info("Checking <Model> config load.")
	config, err := modelcfg.Load(modelPath, trustRemoteCode)
	if err != nil {
		c.fatal(err, "Model", fmt.Sprintf(
			"Loading the model config with model library %s failed.\n"+
				"Please make sure the model can be loaded with the engine's config API.", c.ModelLibVersion))
	}
	return config
}

// checkModelRequiredVersion asserts the installed model library satisfies the minimum
// version the model config declares, if any.
func (c *Checker) checkModelRequiredVersion(modelPath string, config *modelcfg.ModelConfig, installed *semver.Version) {
	klog.V(1).Info("Checking <Model> required library version.")
	if config.RequiredLibraryVersion == "" {
		return
	}
	message := fmt.Sprintf("Model %q requires model library version %s but %s is installed.",
		modelPath, config.RequiredLibraryVersion, installed)
	required, err := semver.NewVersion(config.RequiredLibraryVersion)
	if err != nil {
		c.fatal(errors.Wrapf(err, "failed to parse the model's required library version %q", config.RequiredLibraryVersion),
			"Model", message)
	}
	if installed.LessThan(required) {
		c.fatal(errors.Errorf("model library version mismatch: installed %s, required %s", installed, required),
			"Model", message)
	}
}

// checkModelDType derives the effective compute precision and asserts the target
// device supports it.
func (c *Checker) checkModelDType(config *modelcfg.ModelConfig, dtype, deviceType string) {
	klog.V(1).Info("Checking <Model> dtype support.")
	effective, err := deriveDType(config, dtype)
	if err != nil {
		c.fatal(err, "Model", "Please report this issue to the engine maintainers with the full error logs.")
	}
	if effective != DTypeBFloat16 {
		return
	}
	supported, err := c.Table.SupportsBFloat16(deviceType, c.Caps)
	if err != nil {
		c.fatal(err, "Model", "Please report this issue to the engine maintainers with the full error logs.")
	}
	if !supported {
		c.fatal(errors.Errorf("bfloat16 is not supported on device type %q", deviceType),
			"Model", fmt.Sprintf(
				"Your device does not support `%s`. You can set `dtype` to %s in the engine config "+
					"or pass `-dtype %s`.\nNote that this might have negative effects!",
				effective, DTypeFloat16, DTypeFloat16))
	}
}

// deriveDType resolves the effective compute precision from the requested dtype and
// the model config. "auto" (or empty) follows the config, defaulting to float16 the
// way the engine does at load time.
func deriveDType(config *modelcfg.ModelConfig, dtype string) (string, error) {
	effective := dtype
	if effective == DTypeAuto || effective == "" {
		effective = config.TorchDtype
		if effective == "" {
			effective = DTypeFloat16
		}
	}
	switch effective {
	case DTypeFloat32, DTypeFloat16, DTypeBFloat16:
		return effective, nil
	default:
		return "", errors.Errorf("unsupported compute precision %q", effective)
	}
}
