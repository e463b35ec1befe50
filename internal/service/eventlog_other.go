//go:build !windows

package service

// ReportStartupError is a no-op outside Windows; the startup error file covers it.
func ReportStartupError(source string, err error) {}
