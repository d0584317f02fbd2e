package image

import (
	"fmt"
	"strings"
)

// Hexdump renders data in the classic offset/hex/ASCII layout, sixteen bytes
// per line. Debug paths and tests use it to inspect frame buffers.
func Hexdump(data []byte) string {
	const bytesPerLine = 16
	var b strings.Builder

	for offset := 0; offset < len(data); offset += bytesPerLine {
		fmt.Fprintf(&b, "%08x ", offset)

		for j := 0; j < bytesPerLine; j++ {
			if offset+j < len(data) {
				fmt.Fprintf(&b, "%02x ", data[offset+j])
			} else {
				b.WriteString("   ")
			}
		}

		b.WriteByte(' ')
		for j := 0; j < bytesPerLine && offset+j < len(data); j++ {
			c := data[offset+j]
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
