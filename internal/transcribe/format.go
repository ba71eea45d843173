package transcribe

import (
	"fmt"
	"io"

	"whisper-batch/internal/domain"
)

// FormatLine renders one segment as "[start - end]: text\n". Offsets are
// printed with two decimals, correctly rounded from the float64 value with
// ties to even, so 1.005 (stored just below) prints as 1.00 and 0.125 as 0.12.
// Text is written verbatim.
func FormatLine(seg domain.Segment) string {
	return fmt.Sprintf("[%.2f - %.2f]: %s\n", seg.Start, seg.End, seg.Text)
}

// writeSegment appends one formatted line to w.
func writeSegment(w io.Writer, seg domain.Segment) error {
	_, err := io.WriteString(w, FormatLine(seg))
	return err
}
