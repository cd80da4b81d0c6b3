package preflight

import (
	"strings"

	"github.com/gomlx/go-preflight/pkg/modelcfg"
	"k8s.io/klog/v2"
)

// unknownFieldSignatures identify adapter config load failures caused by fields the
// engine doesn't recognize: Go's strict JSON decoding, and the signature emitted by
// the Python tool chain adapters are usually exported with.
var unknownFieldSignatures = []string{
	"unknown field",
	"got an unexpected keyword argument",
}

// checkAdapter loads one adapter's configuration. Failure is fatal; failures caused by
// unrecognized fields get an extra hint to strip them from the adapter config file.
func (c *Checker) checkAdapter(path string) {
	klog.V(1).Infof("Checking <Adapter>: %s.", path)
	if _, err := modelcfg.LoadAdapterConfig(path); err != nil {
		c.fatal(err, "Adapter", adapterRemediation(err))
	}
}

// adapterRemediation builds the remediation text for an adapter config load failure.
func adapterRemediation(err error) string {
	message := "Please make sure the adapter can be loaded with the engine's adapter config API.\n"
	for _, signature := range unknownFieldSignatures {
		if strings.Contains(err.Error(), signature) {
			message += "Or try removing all unrecognized fields from `adapter_config.json`."
			break
		}
	}
	return message
}
