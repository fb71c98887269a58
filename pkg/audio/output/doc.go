// ABOUTME: Audio output package for monitoring the capture stream
// ABOUTME: Provides the Output interface, an oto backend and the Monitor consumer
// Package output plays audio locally.
//
// The Monitor consumer lets an operator hear exactly what is being
// transcribed. Playback never blocks the pipeline; when the device falls
// behind the oldest buffered audio is dropped.
//
// Example:
//
//	mon := output.NewMonitor(output.NewOto())
//	err := mon.Feed(block)
package output
