// ABOUTME: Caption wire protocol package
// ABOUTME: Defines protocol messages, audio frames and the WebSocket client
// Package protocol implements the caption streaming protocol.
//
// A client opens a WebSocket to a caption server, exchanges hello
// messages, announces a stream with stream/start and then uploads
// binary audio frames. The server answers with server/transcript
// messages anchored to the sample offsets carried by each frame.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8928"})
//	err := client.Connect(ctx)
//	err = client.SendAudio(protocol.AudioFrame{Seq: 0, Offset: 0, Payload: pcm})
package protocol
