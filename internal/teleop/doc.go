// Package teleop turns gamepad frames and vehicle state into actuation
// commands.
//
// A Controller owns the arm/disarm state machine, the setpoint integrator and
// the output selector. It is not safe for concurrent use: a Runner owns it
// from a single goroutine, drains the latest-value mailboxes written by the
// input transports, and calls Tick once per period of a fixed-rate ticker.
//
// Controls (PS3 layout):
//
//	Start        arm                X        disarm
//	L1           toggle attitude    R1       toggle depth
//	Triangle     start depth        Select   toggle alignment plane
//	D-pad        roll / pitch       Circle   level roll and pitch
//	Left stick   yaw (moment when attitude is untrusted)
//	Right stick  surge / sway       R2 / L2  descend / ascend
//	Square       boost              L3/R3/PS torpedoes and marker
package teleop
