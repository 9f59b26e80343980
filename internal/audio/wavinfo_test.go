package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeWAV builds a minimal PCM WAV file.
func writeWAV(t *testing.T, sampleRate, channels, dataBytes int) string {
	t.Helper()

	bitsPerSample := 16
	byteRate := sampleRate * channels * bitsPerSample / 8

	buf := make([]byte, 0, 44+dataBytes)
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataBytes))
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels*bitsPerSample/8))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitsPerSample))

	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataBytes))
	buf = append(buf, make([]byte, dataBytes)...)

	path := filepath.Join(t.TempDir(), "probe.wav")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestProbe_WAV(t *testing.T) {
	// One second of 44.1kHz stereo 16-bit PCM.
	sampleRate, channels := 44100, 2
	dataBytes := sampleRate * channels * 2
	path := writeWAV(t, sampleRate, channels, dataBytes)

	info := Probe(path)
	if info.SampleRate != sampleRate {
		t.Errorf("expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}
	if info.Channels != channels {
		t.Errorf("expected %d channels, got %d", channels, info.Channels)
	}
	if info.Duration < 0.99 || info.Duration > 1.01 {
		t.Errorf("expected ~1s duration, got %v", info.Duration)
	}
}

func TestProbe_NonWAVIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("ID3 not a wav"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	info := Probe(path)
	if info.SampleRate != 0 || info.Channels != 0 || info.Duration != 0 {
		t.Errorf("expected zero info for non-WAV, got %+v", info)
	}
}

func TestProbe_MissingFileIsZero(t *testing.T) {
	info := Probe(filepath.Join(t.TempDir(), "missing.wav"))
	if info.SampleRate != 0 || info.Channels != 0 || info.Duration != 0 {
		t.Errorf("expected zero info for missing file, got %+v", info)
	}
}

func TestProbe_TruncatedHeaderIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	info := Probe(path)
	if info.SampleRate != 0 {
		t.Errorf("expected zero info for truncated file, got %+v", info)
	}
}
