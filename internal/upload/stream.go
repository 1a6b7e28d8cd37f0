package upload

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fieldnode/sensornode/internal/iox"
)

// chunkBytes is the buffer size reused across writes, per
// UPLOAD_CHUNK_BYTES. The board reuses a single fixed buffer rather than
// allocating per read.
const chunkBytes = 8192

// connTimeout bounds both connect and the overall streaming call, per
// WiFiClientSecure::setTimeout(5000) on the board.
const connTimeout = 5 * time.Second

// StreamPUT opens a raw HTTP/1.1 connection to host:port (TLS when port
// is 443) and PUTs body's next size bytes to path, per stream_upload. The
// device cannot link an HTTP client library capable of chunked transfer
// encoding or keep-alive; this mirrors its single-shot
// Content-Length-declared PUT with Connection: close.
func StreamPUT(ctx context.Context, host string, port int, path, contentType string, body io.Reader, size int64, allowInsecureTLS bool) error {
	conn, err := dial(ctx, host, port, allowInsecureTLS)
	if err != nil {
		return fmt.Errorf("upload: connect %s:%d: %w", host, port, err)
	}
	defer iox.DiscardClose(conn)

	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(time.Now().Add(connTimeout))
	}

	reqLine := fmt.Sprintf("PUT %s HTTP/1.1\r\n", path) +
		fmt.Sprintf("Host: %s\r\n", host) +
		fmt.Sprintf("Content-Type: %s\r\n", contentType) +
		fmt.Sprintf("Content-Length: %d\r\n", size) +
		"Connection: close\r\n\r\n"

	if _, err := io.WriteString(conn, reqLine); err != nil {
		return fmt.Errorf("upload: write request line: %w", err)
	}

	buf := make([]byte, chunkBytes)
	if _, err := io.CopyBuffer(conn, io.LimitReader(body, size), buf); err != nil {
		return fmt.Errorf("upload: stream body: %w", err)
	}

	status, err := readStatusLine(conn)
	if err != nil {
		return fmt.Errorf("upload: read response: %w", err)
	}
	if status < 200 || status >= 300 {
		return &StatusError{Op: "stream_upload", Code: status}
	}
	return nil
}

func dial(ctx context.Context, host string, port int, allowInsecureTLS bool) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := &net.Dialer{Timeout: connTimeout}

	if port != 443 {
		return d.DialContext(ctx, "tcp", addr)
	}

	tlsConf := &tls.Config{ServerName: host}
	if allowInsecureTLS {
		tlsConf.InsecureSkipVerify = true //nolint:gosec // matches board's ALLOW_INSECURE_TLS for self-signed dev ingest
	}
	rawConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(rawConn, tlsConf)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		iox.DiscardClose(rawConn)
		return nil, err
	}
	return tlsConn, nil
}

// readStatusLine parses "HTTP/1.1 200 OK\r\n" and returns 200, per
// read_http_status_code.
func readStatusLine(conn net.Conn) (int, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed status code %q: %w", fields[1], err)
	}
	return code, nil
}
