// Package audio owns the podcast output artifact: its path layout and the
// silent placeholder written when speech synthesis fails.
//
// The placeholder is a sequence of silent MPEG-1 Layer III frames (128 kbps,
// 44.1 kHz, mono). Every frame carries a zero side-information block, which
// decoders render as digital silence, so the file is produced offline and is
// byte-for-byte deterministic for a given duration.
package audio
