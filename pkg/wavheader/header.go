// Package wavheader writes the RIFF/WAVE/fmt/data prelude that precedes an
// open-ended audio stream.
//
// go-audio/wav (used elsewhere in the reference stack for writing complete
// WAV files) always computes real chunk sizes from a fully-buffered sample
// set; it has no mode for the deliberately-zeroed, open-ended sizes this
// stream needs, so the header is built directly with encoding/binary
// instead, in the same little-endian style as loqalabs' PCM conversion code.
package wavheader

import (
	"bytes"
	"encoding/binary"

	"github.com/northwing/recoadapter/pkg/site"
)

// Write returns the fixed-size RIFF/WAVE/fmt/data prelude for fmtDesc, with
// both chunk-size fields set to zero because the stream length is unknown
// up front. The fmt chunk is the 14-byte WAVEFORMAT base (tag, channels,
// sample rate, average bytes/sec, block align) followed by bits-per-sample
// and any trailing extra bytes; for a plain PCM descriptor with no extra
// bytes the returned slice is exactly 44 bytes.
func Write(fmtDesc site.FormatDescriptor) []byte {
	formatChunkSize := 14 + 2 + len(fmtDesc.ExtraBytes)
	total := 12 + 8 + formatChunkSize + 8

	buf := bytes.NewBuffer(make([]byte, 0, total))
	buf.WriteString("RIFF")
	writeU32(buf, 0)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeU32(buf, uint32(formatChunkSize))
	writeU16(buf, fmtDesc.Tag)
	writeU16(buf, fmtDesc.Channels)
	writeU32(buf, fmtDesc.SampleRate)
	writeU32(buf, fmtDesc.AvgBytesPerSec)
	writeU16(buf, fmtDesc.BlockAlign)
	writeU16(buf, fmtDesc.BitsPerSample)
	buf.Write(fmtDesc.ExtraBytes)

	buf.WriteString("data")
	writeU32(buf, 0)

	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}
