package upload

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldnode/sensornode/internal/types"
)

func TestRequestTarget_ParsesResponseAndDefaultsPort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Device-Token") != "tok-123" {
			t.Errorf("missing device token header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"upload_path":"/objects/abc","object_key":"abc"}`))
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL, "tok-123", "/devices/upload-target", "/devices/ingest", false)
	m := &types.Manifest{Seq: 1, ContentType: "image/jpeg"}

	target, err := c.RequestTarget(t.Context(), m, "/20260803/photo.jpg")
	if err != nil {
		t.Fatalf("RequestTarget: %v", err)
	}
	if target.Port != 443 {
		t.Errorf("Port = %d, want 443 default", target.Port)
	}
	if target.ObjectKey != "abc" {
		t.Errorf("ObjectKey = %q, want abc", target.ObjectKey)
	}
}

func TestRequestTarget_NonOKIsStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL, "tok", "/devices/upload-target", "/devices/ingest", false)
	_, err := c.RequestTarget(t.Context(), &types.Manifest{Seq: 1}, "/x.jpg")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	var statusErr *StatusError
	if !asStatusError(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.Code != 500 {
		t.Errorf("Code = %d, want 500", statusErr.Code)
	}
}

func TestNotifyIngest_TreatsAny200AsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"duplicate"}`))
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL, "tok", "/devices/upload-target", "/devices/ingest", false)
	m := &types.Manifest{Seq: 1, ContentType: "image/jpeg", CapturedAtEpoch: 1_700_000_000}
	if err := c.NotifyIngest(t.Context(), m, Target{ObjectKey: "abc"}, true); err != nil {
		t.Fatalf("NotifyIngest should treat 200-with-duplicate-body as success: %v", err)
	}
}

func TestNotifyIngest_PayloadIncludesItemTypeAndFilename(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewAPIClient(ts.URL, "tok", "/devices/upload-target", "/devices/ingest", false)
	m := &types.Manifest{
		Seq:         1,
		Filepath:    "/20260803/140509_000001.jpg",
		ContentType: "image/jpeg",
		ItemType:    types.ItemPhoto,
	}
	if err := c.NotifyIngest(t.Context(), m, Target{ObjectKey: "abc"}, false); err != nil {
		t.Fatalf("NotifyIngest: %v", err)
	}

	if gotBody["item_type"] != string(types.ItemPhoto) {
		t.Errorf("item_type = %v, want %q", gotBody["item_type"], types.ItemPhoto)
	}
	if gotBody["original_filename"] != "140509_000001.jpg" {
		t.Errorf("original_filename = %v, want bare filename", gotBody["original_filename"])
	}
}

func asStatusError(err error, target **StatusError) bool {
	se, ok := err.(*StatusError)
	if !ok {
		return false
	}
	*target = se
	return true
}
