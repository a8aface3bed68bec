// Package process runs short-lived helper commands (chattr, update-initramfs,
// dracut) and forwards their output to the daemon log.
//
//	err := process.Run(ctx, logger, "/usr/bin/dracut", "-f", "-q")
//
// A non-zero exit is reported as an *ExitError carrying the exit code and
// the command line.
package process
