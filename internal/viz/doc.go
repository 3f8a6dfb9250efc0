// Package viz renders a running box in the terminal.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [Model]: live view of one engine, stepping on a 60 Hz tick
//   - [Canvas]: Braille-based pixel canvas; [Overlay] colors the infected layer
//   - Theme selection with 5 built-in color schemes
//
// # Key Bindings
//
//	Space - Pause/Resume stepping
//	M     - Start/stop the mean squared velocity measurement
//	L D B - Lift, dampen, settle
//	I     - Infect the particle under the cursor
//	E     - Export the particle table
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//
// # Recording
//
// Recordings are written as GIF animations to the export directory.
package viz
