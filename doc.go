// Package emulator provides a Linux-only serial device simulator built on a
// pseudo-terminal pair.
//
// The emulator allocates a pty, exposes the slave side as an ordinary
// terminal device node and publishes a fixed block of newline-delimited
// readings to it at a steady pace. Whatever the client writes back is read
// and discarded. It lets software that consumes "a device that prints
// periodic readings" run without the hardware.
//
// Features:
//   - Raw syscall-based pty allocation through /dev/ptmx, no cgo
//   - Single-threaded poll loop with a bounded wait, so termination requests
//     are noticed even when the client is silent
//   - Signal-driven graceful shutdown via lock-free flags
//   - Optional raw mode, baud rate and a stable symlink for the slave device
//   - PTY-based tests, including an end-to-end run through the serial package
//
// This package does **not** support Windows.
//
// Example usage:
//
//	em, err := emulator.New(emulator.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer em.Close()
//
//	fmt.Println("Create PTS device:", em.SlavePath())
//
//	reason, err := em.Run() // returns after SIGINT, SIGTERM or peer hang-up
//	if err != nil {
//	    log.Printf("stopped (%s): %v", reason, err)
//	}
//	os.Exit(emulator.ExitCode(err))
package emulator
