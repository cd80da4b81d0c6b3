// Command preflight validates the host's accelerator software stack for the
// inference engine: backend integration, tensor-compute runtime, JIT kernel
// compiler, and optionally a model's and its adapters' requirements.
//
// It exits with status 1 on the first fatal mismatch, printing a framed
// diagnostic with remediation advice; exit status 0 means the environment
// passed every check.
package main

import (
	"flag"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/gomlx/go-preflight/internal/utils"
	"github.com/gomlx/go-preflight/pkg/preflight"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDevice = flag.String("device", "",
		"Device type to validate. Leave empty to choose interactively.")
	flagModel = flag.String("model", "",
		"Path of a model directory (or its config.json) to validate against the environment. Optional.")
	flagDType = flag.String("dtype", "auto",
		"Requested compute precision: auto, float16, bfloat16 or float32.")
	flagTrustRemoteCode = flag.Bool("trust-remote-code", true,
		"Allow models that declare custom remote code (auto_map) in their config.")
	flagAdapters = flag.String("adapters", "",
		"Comma-separated list of adapter directories to validate. Optional.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	checker := preflight.New()
	deviceValues := slices.Sorted(maps.Keys(checker.Table.Devices))

	if *flagDevice == "" {
		if err := askDevice(deviceValues); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Validation aborted.")
				return
			}
			klog.Fatalf("Failed on error: %+v", err)
		}
	}
	if !slices.Contains(deviceValues, *flagDevice) {
		klog.Fatalf("Unknown device type %q, valid values: %s", *flagDevice, strings.Join(deviceValues, ", "))
	}

	err := NewSpinner().
		Title(fmt.Sprintf("Running accelerator smoke tests for %q...", *flagDevice)).
		Run(func() {
			checker.CheckEnv(*flagDevice)
		})
	if err != nil {
		klog.Fatalf("Failed on error: %+v", err)
	}

	if *flagModel != "" {
		checker.CheckModel(*flagModel, *flagTrustRemoteCode, *flagDType, *flagDevice)
	}
	if *flagAdapters != "" {
		checker.CheckAdapters(dedupe(strings.Split(*flagAdapters, ",")))
	}
	fmt.Printf("✅ Environment OK for device type %q\n", *flagDevice)
}

// askDevice prompts for the device type when -device wasn't given.
func askDevice(values []string) error {
	selection := huh.NewSelect[string]().
		Title("Device type to validate").
		Options(huh.NewOptions(values...)...).
		Value(flagDevice)
	return huh.NewForm(huh.NewGroup(selection)).Run()
}

// dedupe removes duplicates and empty entries while preserving order.
func dedupe(paths []string) []string {
	seen := utils.MakeSet[string](len(paths))
	writeIdx := 0
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || seen.Has(path) {
			continue
		}
		seen.Insert(path)
		paths[writeIdx] = path
		writeIdx++
	}
	return paths[:writeIdx]
}
