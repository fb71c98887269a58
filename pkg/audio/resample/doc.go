// ABOUTME: Sample-rate conversion package for the 16 kHz capture pipeline
// ABOUTME: Selects a block strategy once per session and converts in exact blocks
// Package resample converts mono audio to the transcription rate.
//
// Rates are expressed as a coprime ratio p/q. Every input block is a
// multiple of q, so every block converts to exactly block*p/q samples.
//
// Select makes the per-session decision:
//   - Fixed: the device can deliver buffers of an aligned size, so each
//     callback is converted synchronously with one block of latency.
//   - Streaming: the device cannot, so callbacks push into a lock-free FIFO
//     and a worker drains whole blocks.
//
// Example:
//
//	cfg, err := resample.Select(48000, 16000, resample.RangeSizes(256, 4096))
//	if err != nil {
//	    return err
//	}
//	conv, err := resample.NewConverter(cfg, 0)
//	if err != nil {
//	    return err
//	}
//	conv.Process(mono, func(out []float32) { sink.Push(out) })
package resample
