// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package packet defines the tagged union carried on every edge of a
// StreamKit pipeline graph, and the static PacketType used for edge
// validation (spec §3).
package packet

import "fmt"

// Encoding names the wire/value encoding of a Custom packet's payload.
type Encoding string

// Json is the only encoding defined today for Custom packets.
const Json Encoding = "json"

// Kind tags which variant a Packet holds.
type Kind string

const (
	KindAudio         Kind = "audio"
	KindText          Kind = "text"
	KindBinary        Kind = "binary"
	KindTranscription Kind = "transcription"
	KindCustom        Kind = "custom"
)

// AudioFormat describes a PCM sample buffer's layout.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// samples is a shareable buffer: copying an AudioPacket (or a Packet holding
// one) never deep-copies it, it copies only the pointer, so fan-out to N edges
// is O(N) pointer copies rather than O(N*len(data)). A node that needs to mutate the samples
// must copy-on-write first (spec §5).
type samples struct {
	data []float32
}

// AudioPacket carries a PCM sample buffer.
type AudioPacket struct {
	Format  AudioFormat
	samples *samples
}

// NewAudioPacket wraps raw samples into a shareable AudioPacket.
func NewAudioPacket(format AudioFormat, data []float32) AudioPacket {
	return AudioPacket{Format: format, samples: &samples{data: data}}
}

// Samples returns the underlying sample slice. Callers that intend to mutate
// it must call CopyOnWrite first.
func (a AudioPacket) Samples() []float32 {
	if a.samples == nil {
		return nil
	}
	return a.samples.data
}

// CopyOnWrite returns an AudioPacket whose sample buffer is privately owned,
// safe to mutate without affecting any other clone sharing the same buffer.
func (a AudioPacket) CopyOnWrite() AudioPacket {
	if a.samples == nil {
		return a
	}
	owned := make([]float32, len(a.samples.data))
	copy(owned, a.samples.data)
	return AudioPacket{Format: a.Format, samples: &samples{data: owned}}
}

// TranscriptionResult is a structured speech-to-text result.
type TranscriptionResult struct {
	Text       string
	Confidence float64
	Final      bool
	StartMs    int64
	EndMs      int64
}

// Packet is the tagged union carried on every edge. Exactly one of the
// accessor-relevant fields is populated, selected by Kind.
type Packet struct {
	kind Kind

	audio         AudioPacket
	text          string
	binaryData    []byte
	contentType   string
	binaryMeta    map[string]string
	transcription TranscriptionResult
	customTypeID  string
	customEncode  Encoding
	customValue   []byte
	customMeta    map[string]string
}

// Kind reports which variant this Packet holds.
func (p Packet) Kind() Kind { return p.kind }

// Audio builds an Audio packet.
func Audio(a AudioPacket) Packet { return Packet{kind: KindAudio, audio: a} }

// AsAudio returns the audio payload and whether p holds one.
func (p Packet) AsAudio() (AudioPacket, bool) { return p.audio, p.kind == KindAudio }

// Text builds a Text packet. The string is immutable and shared by value,
// which is already cheap in Go — no reference counting needed.
func Text(s string) Packet { return Packet{kind: KindText, text: s} }

// AsText returns the text payload and whether p holds one.
func (p Packet) AsText() (string, bool) { return p.text, p.kind == KindText }

// Binary builds a Binary packet over a shared byte buffer.
func Binary(data []byte, contentType string, metadata map[string]string) Packet {
	return Packet{kind: KindBinary, binaryData: data, contentType: contentType, binaryMeta: metadata}
}

// AsBinary returns the binary payload and whether p holds one.
func (p Packet) AsBinary() ([]byte, string, map[string]string, bool) {
	return p.binaryData, p.contentType, p.binaryMeta, p.kind == KindBinary
}

// Transcription builds a Transcription packet.
func Transcription(t TranscriptionResult) Packet {
	return Packet{kind: KindTranscription, transcription: t}
}

// AsTranscription returns the transcription payload and whether p holds one.
func (p Packet) AsTranscription() (TranscriptionResult, bool) {
	return p.transcription, p.kind == KindTranscription
}

// Custom builds a user-defined packet. encoding is Json today (spec §3).
func Custom(typeID string, encoding Encoding, value []byte, metadata map[string]string) Packet {
	return Packet{kind: KindCustom, customTypeID: typeID, customEncode: encoding, customValue: value, customMeta: metadata}
}

// AsCustom returns the custom payload and whether p holds one.
func (p Packet) AsCustom() (typeID string, encoding Encoding, value []byte, metadata map[string]string, ok bool) {
	return p.customTypeID, p.customEncode, p.customValue, p.customMeta, p.kind == KindCustom
}

// Type returns the static PacketType of p, used for edge validation.
func (p Packet) Type() Type {
	switch p.kind {
	case KindAudio:
		return RawAudio(p.audio.Format)
	case KindText:
		return TypeText
	case KindBinary:
		return TypeBinary
	case KindTranscription:
		return TypeTranscription
	case KindCustom:
		return Type{family: familyCustom, customTypeID: p.customTypeID}
	default:
		return Type{}
	}
}

// String renders a Packet for logs/debugging without dumping payload bytes.
func (p Packet) String() string {
	switch p.kind {
	case KindAudio:
		return fmt.Sprintf("Audio{rate=%d ch=%d samples=%d}", p.audio.Format.SampleRate, p.audio.Format.Channels, len(p.audio.Samples()))
	case KindText:
		return fmt.Sprintf("Text(%d bytes)", len(p.text))
	case KindBinary:
		return fmt.Sprintf("Binary{%d bytes, type=%q}", len(p.binaryData), p.contentType)
	case KindTranscription:
		return fmt.Sprintf("Transcription(%q, final=%v)", p.transcription.Text, p.transcription.Final)
	case KindCustom:
		return fmt.Sprintf("Custom{type=%q, encoding=%s, %d bytes}", p.customTypeID, p.customEncode, len(p.customValue))
	default:
		return "Packet{}"
	}
}
