package allocator

import (
	"fmt"
	"regexp"

	"github.com/cuemby/nimbus-allocator/pkg/types"
)

var (
	vmemDiagnosticRe = regexp.MustCompile(`[0-9.]+ [KMG]B of [0-9.]+ [KMG]B (physical|virtual) memory used`)
)

var systemFaultExitStatuses = map[types.ExitStatus]bool{
	types.ExitKilledByResourceManager:  true,
	types.ExitKilledByAppMaster:        true,
	types.ExitKilledAfterAppCompletion: true,
	types.ExitAborted:                  true,
	types.ExitDisksFailed:              true,
}

// classifyExit implements §4.6.6's exit-status classification table. It
// returns whether the exit is attributable to the application, a
// diagnostic message, and whether the blacklist tracker should be informed
// of an allocation failure on the container's host.
func classifyExit(status types.ExitStatus, diagnostics string) (causedByApp bool, message string, feedBlacklist bool) {
	switch status {
	case types.ExitSuccess:
		return false, "container completed successfully", false
	case types.ExitPreempted:
		return false, "container preempted by the resource manager", false
	case types.ExitVMemExceeded:
		return true, memoryDiagnostic(diagnostics, "virtual"), false
	case types.ExitPMemExceeded:
		return true, memoryDiagnostic(diagnostics, "physical"), false
	}

	if systemFaultExitStatuses[status] {
		return false, fmt.Sprintf("container exited with system fault status %d", status), false
	}

	return true, fmt.Sprintf("container exited with unexpected status %d: %s", status, diagnostics), true
}

func memoryDiagnostic(diagnostics, kind string) string {
	match := vmemDiagnosticRe.FindString(diagnostics)
	if match == "" {
		return fmt.Sprintf("executor ran out of %s memory; consider raising the memory overhead", kind)
	}
	return fmt.Sprintf("executor exceeded %s memory limit (%s); consider raising the memory overhead", kind, match)
}
