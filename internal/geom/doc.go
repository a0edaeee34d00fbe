// Package geom maps time onto the spiral and back.
//
// Angles are "theta": an unwrapped angle that grows by 2π per day and by
// SegmentAngle per hour. A RadiusParams value turns theta into a radius for
// the current frame, a Range bounds the visible thetas, the segment
// enumerator walks every hour cell inside that range, and the hit tester
// inverts the whole pipeline to turn a pointer position back into a cell.
//
// Everything here is pure: a frame is fully described by SpiralState and
// Viewport, so functions can be called at any rotation, including values far
// outside [0, 2π).
package geom
