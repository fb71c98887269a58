// ABOUTME: Capture package providing audio sources for the caption pipeline
// ABOUTME: Wraps malgo devices and file or tone replay behind one Source contract
// Package capture delivers interleaved audio frames from a backend.
//
// Sources negotiate a device in Open, which reports the actual sample rate,
// channel count and the buffer sizes the backend can deliver. The caller
// chooses a block size from that report and calls Start.
//
// Available sources:
//   - Malgo: microphones and, on WASAPI, system loopback via miniaudio
//   - ReaderSource: MP3, FLAC or a generated tone replayed in real time
//
// Example:
//
//	src := capture.NewMalgo()
//	info, err := src.Open(ctx, capture.OpenParams{Loopback: true})
//	if err != nil {
//	    return err
//	}
//	src.OnFrames(func(b audio.FrameBatch) { ... })
//	src.Start(1536)
package capture
