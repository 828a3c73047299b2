// Package dynamo provides the core primitives shared by the rigid-body
// dynamics packages.
//
// The package defines the joint-space vector type, the ODE abstractions used
// by the reference simulation world, and the error taxonomy every other
// package reports through:
//
//   - [State]: joint-space vector (positions, velocities, accelerations)
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [ErrUnknownLink], [ErrDimensionMismatch], [ErrNumericalSingularity],
//     [ErrAttachmentInvalid], [ErrStaleState]: sentinel errors
//
// # Error Handling
//
// Structural errors (bad link names, wrong vector sizes) are returned wrapped
// in [LinkError] or [DimensionError] so callers can both match the sentinel
// with errors.Is and inspect the offending operation:
//
//	if errors.Is(err, dynamo.ErrUnknownLink) {
//	    // caller/model mismatch
//	}
//
// Floating-point ill-conditioning is recovered where it happens and is never
// reported as an error.
package dynamo
