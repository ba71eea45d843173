package media

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// WAVInfo describes a PCM WAV header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ErrNotWAV is returned when the file does not carry a valid RIFF/WAVE header.
var ErrNotWAV = errors.New("not a valid wav file")

// ProbeWAV reads the header of a WAV file without decoding its samples.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}

	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("locate wav data chunk: %w", err)
	}

	info := WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8
	if bytesPerSec > 0 {
		info.Duration = time.Duration(float64(dec.PCMSize) / float64(bytesPerSec) * float64(time.Second))
	}
	return info, nil
}
