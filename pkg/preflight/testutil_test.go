package preflight

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// requireNoError fails the test immediately if err is not nil.
func requireNoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: %v", msg, err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// requireError fails the test immediately if err is nil.
func requireError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected an error but got nil", msg)
		} else {
			t.Fatal("expected an error but got nil")
		}
	}
}

// requireErrorContains fails if err is nil or doesn't contain the expected substring.
func requireErrorContains(t *testing.T, err error, contains string, msgAndArgs ...any) {
	t.Helper()
	requireError(t, err, msgAndArgs...)
	if !strings.Contains(err.Error(), contains) {
		t.Fatalf("expected error to contain %q, got: %v", contains, err)
	}
}

// assertEqual fails the test immediately if expected != actual.
func assertEqual[T comparable](t *testing.T, expected, actual T, msgAndArgs ...any) {
	t.Helper()
	if expected != actual {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
		} else {
			t.Fatalf("expected %v, got %v", expected, actual)
		}
	}
}

// assertTrue fails if the condition is false.
func assertTrue(t *testing.T, condition bool, msgAndArgs ...any) {
	t.Helper()
	if !condition {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected true", msg)
		} else {
			t.Fatal("expected true")
		}
	}
}

// assertFalse fails if the condition is true.
func assertFalse(t *testing.T, condition bool, msgAndArgs ...any) {
	t.Helper()
	if condition {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected false", msg)
		} else {
			t.Fatal("expected false")
		}
	}
}

// assertContains fails if s doesn't contain the substring.
func assertContains(t *testing.T, s, contains string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, contains) {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected %q to contain %q", msg, s, contains)
		} else {
			t.Fatalf("expected %q to contain %q", s, contains)
		}
	}
}

// assertNotContains fails if s contains the substring.
func assertNotContains(t *testing.T, s, contains string, msgAndArgs ...any) {
	t.Helper()
	if strings.Contains(s, contains) {
		msg := formatMsgAndArgs(msgAndArgs...)
		if msg != "" {
			t.Fatalf("%s: expected %q to not contain %q", msg, s, contains)
		} else {
			t.Fatalf("expected %q to not contain %q", s, contains)
		}
	}
}

// formatMsgAndArgs formats the optional message and arguments.
func formatMsgAndArgs(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf("%v", msgAndArgs[0])
}

// exitSentinel is panicked by the test Checker's exit hook so catchExit can unwind
// the probe the way os.Exit would end the process.
type exitSentinel int

// catchExit runs f and reports whether it terminated through the diagnostic reporter,
// and with which exit code.
func catchExit(t *testing.T, f func()) (code int, exited bool) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			sentinel, ok := r.(exitSentinel)
			if !ok {
				panic(r)
			}
			code = int(sentinel)
			exited = true
		}
	}()
	f()
	return 0, false
}

// captureKlog redirects klog output for the duration of f and returns it.
func captureKlog(t *testing.T, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	klog.LogToStderr(false)
	klog.SetOutput(&buf)
	defer klog.LogToStderr(true)
	f()
	klog.Flush()
	return buf.String()
}

// fakeRuntime is a Runtime with scripted results.
type fakeRuntime struct {
	name    string
	version *semver.Version
	addErr  error
	result  []float32 // If set, returned instead of the true sum.
}

func (f fakeRuntime) Name() string {
	if f.name == "" {
		return "FakeRuntime"
	}
	return f.name
}

func (f fakeRuntime) Version() (*semver.Version, error) {
	return f.version, nil
}

func (f fakeRuntime) Add(deviceType string, a, b []float32) ([]float32, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	if f.result != nil {
		return f.result, nil
	}
	result := make([]float32, len(a))
	for i := range a {
		result[i] = a[i] + b[i]
	}
	return result, nil
}

// fakeCompiler is a KernelCompiler with scripted results.
type fakeCompiler struct {
	version    string
	versionErr error
	compileErr error
	result     []float32
}

func (f fakeCompiler) Name() string { return "FakeCompiler" }

func (f fakeCompiler) Version() (*semver.Version, error) {
	if f.versionErr != nil {
		return nil, f.versionErr
	}
	return semver.NewVersion(f.version)
}

func (f fakeCompiler) CompileAdd(deviceType string, a, b []float32) ([]float32, error) {
	if f.compileErr != nil {
		return nil, f.compileErr
	}
	if f.result != nil {
		return f.result, nil
	}
	result := make([]float32, len(a))
	for i := range a {
		result[i] = a[i] + b[i]
	}
	return result, nil
}

// fakeCaps is a CapabilitySource with scripted answers.
type fakeCaps struct {
	major, minor int
	capErr       error
	driver       string
}

func (f fakeCaps) ComputeCapability() (int, int, error) {
	if f.capErr != nil {
		return 0, 0, f.capErr
	}
	return f.major, f.minor, nil
}

func (f fakeCaps) DriverVersion() (string, error) {
	if f.driver == "" {
		return "", errors.New("no driver")
	}
	return f.driver, nil
}

// fakeLocator resolves only the library names it was given, and records what was asked.
type fakeLocator struct {
	available map[string]string
	asked     []string
}

func (f *fakeLocator) locate(name string) (string, error) {
	f.asked = append(f.asked, name)
	if path, found := f.available[name]; found {
		return path, nil
	}
	return "", errors.Errorf("library %q not found", name)
}

// newTestChecker returns a Checker wired to benign fakes, with the process exit
// replaced by an exitSentinel panic and the diagnostic output captured in a buffer.
func newTestChecker(t *testing.T) (*Checker, *bytes.Buffer, *fakeLocator) {
	t.Helper()
	stderr := &bytes.Buffer{}
	locator := &fakeLocator{available: map[string]string{}}
	checker := &Checker{
		Runtime:         fakeRuntime{},
		Compiler:        fakeCompiler{version: "2.9.0"},
		Caps:            fakeCaps{major: 8, minor: 0, driver: "550.54.14"},
		Table:           DefaultCapabilityTable(),
		ModelLibVersion: "4.44.1",
		Locate:          locator.locate,
		exit:            func(code int) { panic(exitSentinel(code)) },
		stderr:          stderr,
	}
	return checker, stderr, locator
}
