// Package version holds the engine version stamped into backup metadata.
package version

// Version is the ryu engine version. Backups record it so a restore can
// detect format drift between the engine that wrote a backup and the one
// reading it.
const Version = "0.4.2"
