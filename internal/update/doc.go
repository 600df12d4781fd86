// Package update checks the project-files service for a newer release of the
// plugin and, depending on the configured Choice, stages the release artifact
// in the host's update folder for the next restart.
//
// A Checker performs its work once. The outcome is published as a Result that
// any goroutine may read through Status; until the run finishes Status reports
// Incomplete.
//
// Version ordering follows Newer, a dotted-integer comparison kept compatible
// with earlier plugin releases, and the remote version is taken from the
// release metadata by a VersionSource.
package update
