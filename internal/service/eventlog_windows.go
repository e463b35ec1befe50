//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// ReportStartupError writes a failed session start to the Windows Event Log,
// where "sc start" and Event Viewer users look for it.
func ReportStartupError(source string, err error) {
	_ = eventlog.InstallAsEventCreate(source, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, openErr := eventlog.Open(source)
	if openErr != nil {
		return
	}
	defer elog.Close()

	elog.Error(1, fmt.Sprintf("nodeagent failed to start: %v", err))
}
