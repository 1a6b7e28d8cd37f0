// Package upload implements the node's outbound pipeline: request an
// upload target for a pending artifact, stream it over a raw HTTP/1.1 PUT
// (TLS when the target port is 443), notify the ingest service, and
// persist the resulting attempt state back into the artifact's manifest
// so retry/backoff survives a reboot mid-upload.
package upload

import (
	"fmt"
)

// StatusError is returned for a non-2xx HTTP response from the ingest
// API. Wrapping the status code lets callers distinguish retriable (5xx,
// network) from non-retriable (4xx) failures, same shape as the webhook
// adapter's retry short-circuit.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload: %s: unexpected status %d", e.Op, e.Code)
}

// Retriable reports whether the status code is worth a future attempt. 4xx
// responses (other than 429) indicate the request itself is malformed and
// will fail identically on retry.
func (e *StatusError) Retriable() bool {
	if e.Code == 429 {
		return true
	}
	return e.Code >= 500 || e.Code < 400
}
