/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package hostlib resolves the shared libraries that make up the host's
// accelerator software stack: the tensor-compute runtime plugins, the JIT
// kernel-compiler library, quantization kernels and alternative-accelerator
// backend integrations.
//
// Libraries are searched in the LibraryPathsEnv directory -- or directories,
// if it is a ":" separated list. If it is not set, the search falls back to
// "~/.local/lib", the system library directories and LD_LIBRARY_PATH.
//
// The package only locates libraries, it never loads or installs them: loading
// device code is the inference engine's job, after pre-flight validation
// passed.
package hostlib

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// LibraryPathsEnv is the name of the environment variable that defines the search paths for
	// the host libraries being validated.
	LibraryPathsEnv = "PREFLIGHT_LIBRARY_PATH"
)

var (
	// librarySearchPaths is resolved once at initialization from LibraryPathsEnv or the OS defaults.
	librarySearchPaths []string
	muSearchPaths      sync.Mutex
)

func init() {
	paths, found := os.LookupEnv(LibraryPathsEnv)
	if !found {
		librarySearchPaths = osDefaultLibraryPaths()
	} else {
		librarySearchPaths = slices.DeleteFunc(strings.Split(paths, ":"), func(p string) bool {
			return p == "" // Remove empty paths.
		})
	}
}

// osDefaultLibraryPaths returns the directories searched when LibraryPathsEnv is not set:
// LD_LIBRARY_PATH entries first, then the user's local lib directory and the usual system
// library directories.
func osDefaultLibraryPaths() []string {
	var paths []string
	if ldPaths := os.Getenv("LD_LIBRARY_PATH"); ldPaths != "" {
		paths = slices.DeleteFunc(strings.Split(ldPaths, ":"), func(p string) bool {
			return p == ""
		})
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "lib"))
	}
	paths = append(paths, "/usr/local/lib", "/usr/lib", "/usr/lib/x86_64-linux-gnu", "/lib")
	return paths
}

// SearchPaths returns a copy of the directories currently searched for host libraries.
func SearchPaths() []string {
	muSearchPaths.Lock()
	defer muSearchPaths.Unlock()
	return slices.Clone(librarySearchPaths)
}

// SetSearchPaths overrides the directories searched for host libraries.
// Mostly useful in tests and for engines that bundle their own library tree.
func SetSearchPaths(paths []string) {
	muSearchPaths.Lock()
	defer muSearchPaths.Unlock()
	librarySearchPaths = slices.Clone(paths)
}

// Locate searches the library search paths for a shared library with the given base name
// ("triton" matches libtriton.so, libtriton.so.3.0.0, triton.so, and the .dylib/.dll
// equivalents) and returns the path of the first match.
//
// It returns an error listing the searched directories if the library is not found.
func Locate(name string) (string, error) {
	for _, dir := range SearchPaths() {
		for _, pattern := range []string{
			"lib" + name + ".so", "lib" + name + ".so.*", name + ".so",
			"lib" + name + ".dylib", name + ".dll"} {
			candidates, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			if len(candidates) > 0 {
				slices.Sort(candidates)
				klog.V(1).Infof("Resolved library %q to %s", name, candidates[0])
				return candidates[0], nil
			}
		}
	}
	return "", errors.Errorf("library %q not found in paths %v: set %s to the path(s) to search",
		name, SearchPaths(), LibraryPathsEnv)
}

var (
	// Patterns to extract the device name and optional version from runtime plugin file names.
	rePluginName = []*regexp.Regexp{
		regexp.MustCompile(`^.*[/\\]pjrt_c_api_(.+?)(?:_(v?\d+[.\d]*))?_plugin\.(so|dylib|dll)$`),
		regexp.MustCompile(`^.*[/\\]pjrt[-_]plugin[-_](.+?)()\.(so|dylib|dll)$`),
	}
)

// LocatePlugin searches the library search paths for the tensor-runtime plugin of the
// given device name (e.g. "cuda" matches pjrt_c_api_cuda_plugin.so).
func LocatePlugin(device string) (string, error) {
	for _, dir := range SearchPaths() {
		for _, pattern := range []string{
			"pjrt_c_api_" + device + "_plugin.so", "pjrt_c_api_" + device + "_*_plugin.so",
			"pjrt-plugin-" + device + ".so", "pjrt_plugin_" + device + ".so"} {
			candidates, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			if len(candidates) > 0 {
				slices.Sort(candidates)
				return candidates[0], nil
			}
		}
	}
	return "", errors.Errorf("runtime plugin for device %q not found in paths %v: set %s to the path(s) to search; "+
		"plugins should be named pjrt_c_api_<device>_plugin.so",
		device, SearchPaths(), LibraryPathsEnv)
}

// PluginVersion extracts the version embedded in a runtime plugin file name
// (pjrt_c_api_cpu_v0.83.3_plugin.so -> "v0.83.3"). Returns "" if the name carries no version.
func PluginVersion(path string) string {
	for _, re := range rePluginName {
		if subMatches := re.FindStringSubmatch(path); subMatches != nil {
			return subMatches[2]
		}
	}
	return ""
}

var reSonameVersion = regexp.MustCompile(`\.so\.(\d+(?:\.\d+)*)$`)

// SonameVersion extracts the version suffix of a shared library path
// (libtriton.so.3.0.0 -> "3.0.0", true). Returns ("", false) when the path carries no version.
func SonameVersion(path string) (string, bool) {
	subMatches := reSonameVersion.FindStringSubmatch(path)
	if subMatches == nil {
		return "", false
	}
	return subMatches[1], true
}
