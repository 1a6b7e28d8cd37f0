package upload

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/clockid"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/iox"
	"github.com/fieldnode/sensornode/internal/types"
)

// fakeObjectStore accepts raw PUT uploads on a plain TCP listener and
// always replies 200 OK, playing the role of the object store the
// control plane hands the device a target for.
func fakeObjectStore(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(iox.CloseFunc(ln))

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				var n int
				for {
					line, err := r.ReadString('\n')
					if err != nil || line == "\r\n" {
						break
					}
					if strings.HasPrefix(line, "Content-Length:") {
						v := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
						n, _ = strconv.Atoi(v)
					}
				}
				io.CopyN(io.Discard, r, int64(n))
				conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
			}()
		}
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return h, port
}

func TestEngine_RunBatch_UploadsPendingItemEndToEnd(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	relPath, err := store.WritePhoto("/20260803", "/140000_000001.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("WritePhoto: %v", err)
	}
	m := &types.Manifest{Seq: 1, Filepath: relPath, Status: types.StatusPending, ItemType: types.ItemPhoto, ContentType: "image/jpeg"}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	objHost, objPort := fakeObjectStore(t)

	var gotTargetReq map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/devices/upload-target":
			if err := json.NewDecoder(r.Body).Decode(&gotTargetReq); err != nil {
				t.Fatalf("decode upload-target request: %v", err)
			}
			w.Write([]byte(`{"upload_host":"` + objHost + `","upload_port":` + strconv.Itoa(objPort) + `,"upload_path":"/objects/1","object_key":"obj-1"}`))
		case "/devices/ingest":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	api := NewAPIClient(ts.URL, "tok", "/devices/upload-target", "/devices/ingest", false)
	clock := clockid.NewClock()
	metrics := devicemetrics.NewCollector("test")

	cfg := Config{MaxAttempts: 3, Backoff: []time.Duration{60 * time.Second, 300 * time.Second, 1800 * time.Second}, BatchSize: 5}
	engine := New(store, clock, api, metrics, nil, cfg)

	res, err := engine.RunBatch(t.Context())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", res.Uploaded)
	}

	loaded, err := store.LoadManifest(types.ManifestPath(1))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Status != types.StatusUploaded {
		t.Errorf("Status = %q, want UPLOADED", loaded.Status)
	}
	if loaded.UploadAttempts != 1 {
		t.Errorf("UploadAttempts = %d, want 1", loaded.UploadAttempts)
	}
	if gotTargetReq["filename"] != "140000_000001.jpg" {
		t.Errorf("upload-target filename = %v, want bare filename, not the full relative path", gotTargetReq["filename"])
	}
}

func TestEngine_RunBatch_FailureRetriesUntilMaxAttempts(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	relPath, _ := store.WritePhoto("/20260803", "/140000_000002.jpg", []byte("jpeg-bytes"))
	m := &types.Manifest{Seq: 2, Filepath: relPath, Status: types.StatusPending, ItemType: types.ItemPhoto, ContentType: "image/jpeg", UploadAttempts: 2}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	api := NewAPIClient(ts.URL, "tok", "/devices/upload-target", "/devices/ingest", false)
	clock := clockid.NewClock()
	metrics := devicemetrics.NewCollector("test")
	cfg := Config{MaxAttempts: 3, Backoff: []time.Duration{0, 0, 0}, BatchSize: 5}
	engine := New(store, clock, api, metrics, nil, cfg)

	res, err := engine.RunBatch(t.Context())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}

	loaded, err := store.LoadManifest(types.ManifestPath(2))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Status != types.StatusFailed {
		t.Errorf("Status = %q, want FAILED after exhausting max attempts", loaded.Status)
	}
}

func TestEngine_SelectOldestPending_SkipsBackoffWindow(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	relPath, _ := store.WritePhoto("/20260803", "/140000_000003.jpg", []byte("jpeg"))
	clock := clockid.NewClock()
	now := clock.NowEpoch()

	m := &types.Manifest{
		Seq: 3, Filepath: relPath, Status: types.StatusPending,
		ItemType: types.ItemPhoto, ContentType: "image/jpeg",
		UploadAttempts: 1, LastAttemptEpoch: now,
	}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	metrics := devicemetrics.NewCollector("test")
	cfg := Config{MaxAttempts: 3, Backoff: []time.Duration{3600 * time.Second}, BatchSize: 5}
	engine := New(store, clock, nil, metrics, nil, cfg)

	_, found, err := engine.selectOldestPending()
	if err != nil {
		t.Fatalf("selectOldestPending: %v", err)
	}
	if found {
		t.Error("item still inside its backoff window should not be selected")
	}
}

func TestEngine_CountPending(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	for _, s := range []struct {
		seq    uint32
		status types.Status
	}{
		{1, types.StatusPending},
		{2, types.StatusUploaded},
		{3, types.StatusPending},
	} {
		m := &types.Manifest{Seq: s.seq, Status: s.status, ItemType: types.ItemPhoto, ContentType: "image/jpeg"}
		if err := store.WriteManifestAtomic(m); err != nil {
			t.Fatalf("WriteManifestAtomic seq=%d: %v", s.seq, err)
		}
	}

	clock := clockid.NewClock()
	metrics := devicemetrics.NewCollector("test")
	engine := New(store, clock, nil, metrics, nil, Config{MaxAttempts: 3, BatchSize: 5})

	count, err := engine.CountPending()
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if count != 2 {
		t.Errorf("CountPending = %d, want 2", count)
	}
}
