package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/hydromet/datanode/internal/auth"
	"github.com/hydromet/datanode/internal/pki"
)

// Upload signs the document and sends it to the node in a single attempt.
//
// The signature covers the raw document bytes, so the body must be sent
// exactly as signed.
func (m Manager) Upload(ctx context.Context, document []byte) error {
	slog.Debug("Uploading document", "url", m.uploadURL, "bytes", len(document))

	signature, err := pki.Sign(document, m.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign document: %v", err)
	}

	return m.send(ctx, document, signature)
}

// BackoffUpload behaves like Upload, but if there are any send errors, it will
// retry the upload after a backoff period. The backoff period is calculated as
// an exponential backoff with full jitter. If the maximum number of attempts
// is reached, it will stop retrying and return the last error.
func (m Manager) BackoffUpload(ctx context.Context, document []byte) (err error) {
	attempts := uint32(0)
	for {
		err = m.Upload(ctx, document)
		if !errors.Is(err, ErrSendFailure) {
			break
		}

		exp := min(m.baseRetryPeriod*(1<<attempts), m.maxRetryPeriod)
		wait := time.Duration(rand.Int63n(int64(max(exp, 1)))) // #nosec:G404 We don't need cryptographic randomness.

		attempts++
		if attempts > m.maxAttempts {
			slog.Warn("Maximum upload attempts reached, giving up", "attempts", attempts)
			break
		}
		slog.Warn("Failed to send document, retrying upload after backoff period", "seconds", wait.Seconds(), "error", err)

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}

	return err
}

func (m Manager) send(ctx context.Context, document, signature []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.uploadURL, bytes.NewReader(document))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Authorization", auth.FormatHeader(m.keyID, signature))

	client := &http.Client{Timeout: m.responseTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Join(ErrSendFailure, fmt.Errorf("failed to send HTTP request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Join(ErrSendFailure, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, body))
	}

	return nil
}
