// Package audio extracts best-effort metadata from uploaded files.
package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Info holds best-effort audio metadata. Zero values mean the field
// could not be extracted.
type Info struct {
	SampleRate int
	Channels   int
	Duration   float64 // seconds
}

// Probe reads WAV (RIFF) headers from the file. Non-WAV or malformed
// files yield a zero Info and no error; metadata here is optional.
func Probe(path string) Info {
	f, err := os.Open(path)
	if err != nil {
		return Info{}
	}
	defer f.Close()

	info, err := parseRIFF(f)
	if err != nil {
		return Info{}
	}
	return info
}

func parseRIFF(r io.Reader) (Info, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Info{}, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, errors.New("not a RIFF/WAVE file")
	}

	var info Info
	var byteRate uint32

	// Walk chunks until both fmt and data have been seen.
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			break
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, errors.New("short fmt chunk")
			}
			var fmtData [16]byte
			if _, err := io.ReadFull(r, fmtData[:]); err != nil {
				return Info{}, err
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			byteRate = binary.LittleEndian.Uint32(fmtData[8:12])
			if skip := int64(size) - 16; skip > 0 {
				if _, err := io.CopyN(io.Discard, r, skip); err != nil {
					return info, nil
				}
			}
		case "data":
			if byteRate > 0 {
				info.Duration = float64(size) / float64(byteRate)
			}
			return info, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return info, nil
			}
		}
		// Chunks are word-aligned.
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return info, nil
			}
		}
	}

	if info.SampleRate == 0 {
		return Info{}, errors.New("no fmt chunk")
	}
	return info, nil
}
