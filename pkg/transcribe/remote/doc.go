// ABOUTME: Remote transcription package
// ABOUTME: Streams captured audio to a caption server over WebSocket
// Package remote provides a transcribe.Consumer that uploads the
// 16 kHz mono stream to a caption server and reports the transcripts
// it sends back.
package remote
