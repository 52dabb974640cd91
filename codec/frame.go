package codec

import "strings"

// Line endings accepted by FrameOptions.
const (
	LineEndingNone = ""
	LineEndingLF   = "\n"
	LineEndingCRLF = "\r\n"
)

// ChecksumMarker is appended to Frame.Display when a checksum was added.
const ChecksumMarker = " +CRC"

// FrameOptions control how EncodeFrame builds an outbound frame.
type FrameOptions struct {
	// Hex interprets the input as hex digits instead of UTF-8 text.
	Hex bool
	// LineEnding is appended in text mode: "", "\n" or "\r\n".
	LineEnding string
	// AppendChecksum appends the CRC16/Modbus checksum of the frame bytes.
	AppendChecksum bool
}

// Frame is an encoded outbound frame: the bytes written to the transport
// and the escaped string shown by console loggers.
type Frame struct {
	Bytes   []byte
	Display string
}

var displayEscaper = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// EncodeFrame builds the outbound frame for text under opts. In hex mode
// the whole encode fails if the hex is invalid and nothing is written; in
// text mode the line ending is appended to the bytes but not shown in the
// display string. The encoder performs no I/O.
func EncodeFrame(text string, opts FrameOptions) (Frame, error) {
	var frame Frame

	if opts.Hex {
		decoded, err := ParseHex(text)
		if err != nil {
			return Frame{}, err
		}
		frame.Bytes = decoded
		frame.Display = FormatBytes(decoded)
	} else {
		frame.Bytes = []byte(text + opts.LineEnding)
		frame.Display = displayEscaper.Replace(text)
	}

	if opts.AppendChecksum {
		crc := Checksum(frame.Bytes)
		frame.Bytes = append(frame.Bytes, crc[0], crc[1])
		frame.Display += ChecksumMarker
	}

	return frame, nil
}
