package heropool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const probeSniffBytes = 512

// Prober checks whether an image URL is actually loadable. Any failure,
// transport error, non-2xx status or a non-image body, counts as
// unreachable; the distinction is never surfaced.
type Prober interface {
	Probe(ctx context.Context, imageURL string) error
}

// HTTPProber validates candidates by fetching the first bytes of the image
// and sniffing the content type, mirroring what an <img> load would accept.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

func NewHTTPProber(client *http.Client, userAgent string) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = "directory-sync/1.0"
	}
	return &HTTPProber{client: client, userAgent: userAgent}
}

func (p *HTTPProber) Probe(ctx context.Context, imageURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.New("unsupported image url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image returned HTTP %d", resp.StatusCode)
	}

	head := make([]byte, probeSniffBytes)
	n, readErr := io.ReadFull(io.LimitReader(resp.Body, probeSniffBytes), head)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		return readErr
	}
	head = head[:n]

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(head)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("not an image: %s", contentType)
	}
	return nil
}
