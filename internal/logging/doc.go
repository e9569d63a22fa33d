// Package logging sets up the daemon's structured log file under
// ~/.spall/logs/, with rotation and an optional stderr mirror for
// foreground runs.
package logging
