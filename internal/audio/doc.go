// Package audio holds the sample path between an audio source and the
// speech engine: a bounded ring buffer written by the real-time callback,
// the chunk scheduler that decides when enough audio has accumulated, the
// nearest-neighbour resampler and WAV helpers.
//
// Samples are float32 in capture layout. Multi-channel audio stays
// interleaved in the buffer and is reduced to mono by Resample on the
// worker goroutine, so the callback only copies.
package audio
