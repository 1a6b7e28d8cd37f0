package artifactstore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fieldnode/sensornode/internal/iox"
)

const wavHeaderSize = 44

// AudioSink is an open, seekable WAV file mid-recording. A zeroed header
// is written up front (write_wav_header with data_bytes=0) so the file is
// valid-looking immediately; Finish rewrites the header once the final
// sample count is known, per finish_audio_recording.
type AudioSink struct {
	RelPath    string
	SampleRate uint32

	f           *os.File
	framesBytes uint32 // bytes written past the header so far
}

// BeginAudio creates folder/filename, writes a placeholder WAV header and
// returns a sink ready for frame writes.
func (s *Store) BeginAudio(folder, filename string, sampleRate uint32) (*AudioSink, error) {
	if err := s.EnsureFolder(folder); err != nil {
		return nil, err
	}
	relPath := folder + filename
	f, err := os.Create(s.abs(relPath))
	if err != nil {
		return nil, newStoreError(classifyFSErr(err), "create", relPath, err)
	}

	sink := &AudioSink{RelPath: relPath, SampleRate: sampleRate, f: f}
	if err := sink.writeHeader(0); err != nil {
		iox.DiscardClose(f)
		os.Remove(s.abs(relPath))
		return nil, err
	}
	return sink, nil
}

// WriteSamples appends raw little-endian int16 PCM samples to the sink.
func (sink *AudioSink) WriteSamples(samples []int16) (int, error) {
	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	n, err := sink.f.Write(buf)
	if err != nil {
		return n / 2, fmt.Errorf("artifactstore: write audio frame %s: %w", sink.RelPath, err)
	}
	sink.framesBytes += uint32(n)
	return n / 2, nil
}

// SampleCount returns the number of int16 samples written so far.
func (sink *AudioSink) SampleCount() uint32 {
	return sink.framesBytes / 2
}

// Finish rewrites the WAV header with the final data size and closes the
// file, mirroring finish_audio_recording's header-rewrite-then-close.
func (sink *AudioSink) Finish() error {
	if err := sink.writeHeader(sink.framesBytes); err != nil {
		iox.DiscardClose(sink.f)
		return err
	}
	return sink.f.Close()
}

// Abandon closes the sink without rewriting the header. The caller is
// responsible for deleting the file. internal/vad drops short clips with
// Finish followed by Store.RemoveFile, not with Abandon.
func (sink *AudioSink) Abandon() error {
	return sink.f.Close()
}

func (sink *AudioSink) writeHeader(dataBytes uint32) error {
	header := encodeWAVHeader(sink.SampleRate, dataBytes)
	if _, err := sink.f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("artifactstore: write wav header %s: %w", sink.RelPath, err)
	}
	return nil
}

// encodeWAVHeader builds a canonical 44-byte PCM mono 16-bit WAV header
// for dataBytes of payload, matching write_wav_header byte-for-byte.
func encodeWAVHeader(sampleRate, dataBytes uint32) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataBytes)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], numChannels)
	binary.LittleEndian.PutUint32(h[24:28], sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataBytes)
	return h
}

// DecodeWAVHeader parses a 44-byte PCM WAV header, returning the sample
// rate and declared data byte count. Used by tests to verify clip
// integrity without external tooling.
func DecodeWAVHeader(h []byte) (sampleRate, dataBytes uint32, err error) {
	if len(h) < wavHeaderSize {
		return 0, 0, fmt.Errorf("artifactstore: short wav header (%d bytes)", len(h))
	}
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" {
		return 0, 0, fmt.Errorf("artifactstore: not a RIFF/WAVE file")
	}
	sampleRate = binary.LittleEndian.Uint32(h[24:28])
	dataBytes = binary.LittleEndian.Uint32(h[40:44])
	return sampleRate, dataBytes, nil
}
