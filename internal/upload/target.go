package upload

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/iox"
	"github.com/fieldnode/sensornode/internal/types"
)

// Target is where a single artifact should be uploaded, per the
// request_upload_target response shape.
type Target struct {
	Host      string `json:"upload_host"`
	Port      int    `json:"upload_port"`
	Path      string `json:"upload_path"`
	ObjectKey string `json:"object_key"`
}

// APIClient talks to the device-management control plane: requesting an
// upload target for an artifact and notifying ingest once the bytes have
// landed. Backed by net/http; tests point it at httptest servers.
type APIClient struct {
	BaseURL          string
	DeviceToken      string
	UploadTargetPath string
	IngestNotifyPath string
	TelemetryPath    string
	AllowInsecureTLS bool

	httpClient *http.Client
}

// NewAPIClient builds an APIClient with a timeout-bound http.Client. When
// allowInsecureTLS is set the client skips certificate verification,
// mirroring ALLOW_INSECURE_TLS on the board (a self-signed dev ingest
// endpoint). TelemetryPath defaults to "/devices/telemetry"; set it
// directly on the returned client to override.
func NewAPIClient(baseURL, deviceToken, uploadTargetPath, ingestNotifyPath string, allowInsecureTLS bool) *APIClient {
	transport := &http.Transport{}
	if allowInsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // dev ingest endpoints only, matches board's ALLOW_INSECURE_TLS
	}
	return &APIClient{
		BaseURL:          baseURL,
		DeviceToken:      deviceToken,
		UploadTargetPath: uploadTargetPath,
		IngestNotifyPath: ingestNotifyPath,
		TelemetryPath:    "/devices/telemetry",
		AllowInsecureTLS: allowInsecureTLS,
		httpClient:       &http.Client{Timeout: 10 * time.Second, Transport: transport},
	}
}

// RequestTarget asks the control plane where to PUT an artifact's bytes,
// per request_upload_target.
func (c *APIClient) RequestTarget(ctx context.Context, m *types.Manifest, filename string) (Target, error) {
	reqBody, err := json.Marshal(struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		Seq         uint32 `json:"seq"`
	}{Filename: filename, ContentType: m.ContentType, Seq: m.Seq})
	if err != nil {
		return Target{}, fmt.Errorf("upload: marshal target request: %w", err)
	}

	resp, err := c.do(ctx, "POST", c.UploadTargetPath, reqBody)
	if err != nil {
		return Target{}, err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Target{}, &StatusError{Op: "request_upload_target", Code: resp.StatusCode}
	}

	var target Target
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return Target{}, fmt.Errorf("upload: decode target response: %w", err)
	}
	if target.Port == 0 {
		target.Port = 443
	}
	return target, nil
}

// NotifyIngest tells the control plane the artifact has landed at its
// object key, per notify_ingest. Any HTTP 200 is treated as success, even
// one whose body mentions "duplicate": the board never inspects the
// response body beyond the status line.
func (c *APIClient) NotifyIngest(ctx context.Context, m *types.Manifest, target Target, synced bool) error {
	payload := map[string]any{
		"object_key":        target.ObjectKey,
		"seq":               m.Seq,
		"content_type":      m.ContentType,
		"item_type":         m.ItemType,
		"original_filename": path.Base(m.Filepath),
		"ntp_synced":        synced,
	}
	if synced {
		payload["captured_at"] = time.Unix(int64(m.CapturedAtEpoch), 0).UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upload: marshal ingest notify: %w", err)
	}

	resp, err := c.do(ctx, "POST", c.IngestNotifyPath, body)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "notify_ingest", Code: resp.StatusCode}
	}
	return nil
}

// SendTelemetry posts the node's hourly telemetry payload, per
// send_telemetry. Like NotifyIngest, any HTTP 200 is success.
func (c *APIClient) SendTelemetry(ctx context.Context, snapshot devicemetrics.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("upload: marshal telemetry: %w", err)
	}

	resp, err := c.do(ctx, "POST", c.TelemetryPath, body)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "send_telemetry", Code: resp.StatusCode}
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Token", c.DeviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %s %s: %w", method, path, err)
	}
	return resp, nil
}
