package artifactstore

import (
	"testing"
)

func TestEncodeWAVHeader_RoundTrip(t *testing.T) {
	h := encodeWAVHeader(16000, 3200)
	sr, data, err := DecodeWAVHeader(h)
	if err != nil {
		t.Fatalf("DecodeWAVHeader: %v", err)
	}
	if sr != 16000 {
		t.Errorf("sampleRate = %d, want 16000", sr)
	}
	if data != 3200 {
		t.Errorf("dataBytes = %d, want 3200", data)
	}
}

func TestAudioSink_FinishRewritesHeader(t *testing.T) {
	store := New(t.TempDir())
	sink, err := store.BeginAudio("/audio/20260803", "/120000_000001.wav", 16000)
	if err != nil {
		t.Fatalf("BeginAudio: %v", err)
	}

	samples := make([]int16, 1600) // 100ms at 16kHz
	if _, err := sink.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if sink.SampleCount() != 1600 {
		t.Errorf("SampleCount = %d, want 1600", sink.SampleCount())
	}
	if err := sink.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	data, err := store.OpenArtifact(sink.RelPath)
	if err != nil {
		t.Fatalf("OpenArtifact: %v", err)
	}
	defer data.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := data.Read(header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	_, dataBytes, err := DecodeWAVHeader(header)
	if err != nil {
		t.Fatalf("DecodeWAVHeader: %v", err)
	}
	if dataBytes != 3200 {
		t.Errorf("dataBytes in rewritten header = %d, want 3200 (1600 samples * 2 bytes)", dataBytes)
	}
}
