package preflight

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// defaultRemediation is used when a probe has no more specific advice to offer.
const defaultRemediation = "Please ensure it has been installed correctly."

// failureStyle frames the fatal diagnostic in red so it stands out from the
// engine's startup logs.
var failureStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("9")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("9")).
	Padding(0, 1)

// fatal reports a probe failure and terminates the process with exit status 1.
//
// It logs the full failure detail (with stack, if the error carries one) at debug
// level, a short summary at error level, prints the framed diagnostic with the
// remediation text to stderr and exits. It never returns: callers must not place
// recovery logic after it.
func (c *Checker) fatal(err error, subsystem, remediation string) {
	if remediation == "" {
		remediation = defaultRemediation
	}
	klog.V(1).Infof("<%s> failure detail: %+v", subsystem, err)
	klog.Errorf("%T: %v", errors.Cause(err), err)
	fmt.Fprintln(c.stderr, failureStyle.Render(fmt.Sprintf("<%s> check failed!\n%s", subsystem, remediation)))
	c.exit(1)
	panic("preflight: the diagnostic reporter must terminate the process")
}
