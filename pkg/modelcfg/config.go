// Package modelcfg loads and models the on-disk configuration files the engine consumes:
// the model's config.json and the adapter_config.json of low-rank adapter overlays.
package modelcfg

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Version is the model-definition schema version this engine implements, against
// which it was tested. Model configs may declare a minimum required version
// (see ModelConfig.RequiredLibraryVersion).
var Version = "4.44.1"

// ConfigFileName is the model configuration file expected under a model directory.
const ConfigFileName = "config.json"

// QuantizationConfig is the quantization block of a model config. Opaque to the
// pre-flight checks beyond the method name and bit width.
type QuantizationConfig struct {
	QuantMethod string `json:"quant_method"`
	Bits        int    `json:"bits"`
}

// ModelConfig is a model's configuration as declared in its config.json.
// Only the fields the pre-flight checks look at are decoded; everything else is ignored.
type ModelConfig struct {
	ModelType string `json:"model_type"`

	// TorchDtype is the compute precision the model was exported with ("float16",
	// "bfloat16", "float32"). May be empty.
	TorchDtype string `json:"torch_dtype"`

	// RequiredLibraryVersion is the minimum model-definition library version the model
	// declares, if any.
	RequiredLibraryVersion string `json:"transformers_version"`

	QuantizationConfig *QuantizationConfig `json:"quantization_config"`

	// AutoMap declares remote custom model code; loading such a model requires the caller
	// to opt in with trustRemoteCode.
	AutoMap map[string]string `json:"auto_map"`
}

// Load reads the model configuration from modelPath, which may be a model directory
// (containing config.json) or the configuration file itself.
//
// Models that declare custom remote code (auto_map) are rejected unless trustRemoteCode is set.
func Load(modelPath string, trustRemoteCode bool) (*ModelConfig, error) {
	configPath := modelPath
	if info, err := os.Stat(modelPath); err == nil && info.IsDir() {
		configPath = filepath.Join(modelPath, ConfigFileName)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model config %s", configPath)
	}
	config := &ModelConfig{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse model config %s", configPath)
	}
	if len(config.AutoMap) > 0 && !trustRemoteCode {
		return nil, errors.Errorf("model config %s declares custom remote code (auto_map), "+
			"which requires trust_remote_code to be enabled", configPath)
	}
	return config, nil
}

// decodeStrict unmarshals JSON while rejecting fields the target doesn't declare.
func decodeStrict(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
