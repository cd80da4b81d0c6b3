package modelcfg

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AdapterConfigFileName is the configuration file expected under an adapter directory.
const AdapterConfigFileName = "adapter_config.json"

// AdapterConfig is a low-rank adapter's configuration as declared in its
// adapter_config.json.
//
// Decoding is strict: fields this engine doesn't recognize are an error, since an
// adapter exported by a newer tool chain may carry semantics the engine would
// silently ignore.
type AdapterConfig struct {
	PeftType            string   `json:"peft_type"`
	TaskType            string   `json:"task_type"`
	BaseModelNameOrPath string   `json:"base_model_name_or_path"`
	InferenceMode       bool     `json:"inference_mode"`
	Rank                int      `json:"r"`
	LoraAlpha           float64  `json:"lora_alpha"`
	LoraDropout         float64  `json:"lora_dropout"`
	TargetModules       []string `json:"target_modules"`
	ModulesToSave       []string `json:"modules_to_save"`
	Bias                string   `json:"bias"`
	FanInFanOut         bool     `json:"fan_in_fan_out"`
	Revision            string   `json:"revision"`
}

// LoadAdapterConfig reads an adapter configuration from adapterPath, which may be an
// adapter directory (containing adapter_config.json) or the configuration file itself.
func LoadAdapterConfig(adapterPath string) (*AdapterConfig, error) {
	configPath := adapterPath
	if info, err := os.Stat(adapterPath); err == nil && info.IsDir() {
		configPath = filepath.Join(adapterPath, AdapterConfigFileName)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read adapter config %s", configPath)
	}
	config := &AdapterConfig{}
	if err := decodeStrict(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse adapter config %s", configPath)
	}
	return config, nil
}
