// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package packet

import "fmt"

type family int

const (
	familyAny family = iota
	familyRawAudio
	familyOpusAudio
	familyText
	familyBinary
	familyCustom
	familyTranscription
)

// Type is the static type tag used for pre-flight edge validation
// (spec §3): RawAudio(format), OpusAudio, Text, Binary, Custom{type_id}, Any.
type Type struct {
	family       family
	audioFormat  AudioFormat
	customTypeID string
}

// Any matches anything on the destination side.
var Any = Type{family: familyAny}

// TypeText matches only Text packets.
var TypeText = Type{family: familyText}

// TypeBinary matches only Binary packets.
var TypeBinary = Type{family: familyBinary}

// TypeOpusAudio matches only Opus-encoded audio (carried as Binary/Custom
// payload in this spec's data model; declared separately so nodes can
// advertise it distinctly from raw PCM).
var TypeOpusAudio = Type{family: familyOpusAudio}

// TypeTranscription matches only Transcription packets.
var TypeTranscription = Type{family: familyTranscription}

// RawAudio builds a PacketType for PCM audio at the given format. A
// SampleRate or Channels of zero is a wildcard that matches any value on that
// axis (spec §3).
func RawAudio(format AudioFormat) Type {
	return Type{family: familyRawAudio, audioFormat: format}
}

// CustomType builds a PacketType for a user-defined Custom packet family.
func CustomType(typeID string) Type {
	return Type{family: familyCustom, customTypeID: typeID}
}

// Accepts reports whether a destination pin declaring `dst` as one of its
// accepted types may receive a packet produced with PacketType `src`
// (spec invariant 1, §3's RawAudio wildcard and Any semantics).
func Accepts(dst, src Type) bool {
	if dst.family == familyAny || src.family == familyAny {
		return true
	}
	if dst.family != src.family {
		return false
	}
	switch dst.family {
	case familyRawAudio:
		return audioFormatCompatible(dst.audioFormat, src.audioFormat)
	case familyCustom:
		return dst.customTypeID == src.customTypeID
	default:
		return true
	}
}

func audioFormatCompatible(dst, src AudioFormat) bool {
	if dst.SampleRate != 0 && src.SampleRate != 0 && dst.SampleRate != src.SampleRate {
		return false
	}
	if dst.Channels != 0 && src.Channels != 0 && dst.Channels != src.Channels {
		return false
	}
	return true
}

func (t Type) String() string {
	switch t.family {
	case familyAny:
		return "Any"
	case familyRawAudio:
		return fmt.Sprintf("RawAudio(rate=%d,ch=%d)", t.audioFormat.SampleRate, t.audioFormat.Channels)
	case familyOpusAudio:
		return "OpusAudio"
	case familyText:
		return "Text"
	case familyBinary:
		return "Binary"
	case familyTranscription:
		return "Transcription"
	case familyCustom:
		return fmt.Sprintf("Custom{%s}", t.customTypeID)
	default:
		return "Unknown"
	}
}

// Equal reports structural equality, independent of wildcard matching rules.
func (t Type) Equal(other Type) bool {
	return t.family == other.family && t.audioFormat == other.audioFormat && t.customTypeID == other.customTypeID
}
