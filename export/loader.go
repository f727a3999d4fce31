package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

// MaxImageBytes caps how much of an image response is read.
const MaxImageBytes = 20 << 20

var (
	ErrForbiddenURL     = errors.New("image url not allowed")
	ErrForbiddenAddress = errors.New("image host resolves to a non-public address")
	ErrImageTooLarge    = errors.New("image too large")
)

// HTTPImageLoader fetches image elements for export. Only http and https URLs
// are followed, and only to public addresses unless AllowPrivate is set.
type HTTPImageLoader struct {
	client   *http.Client
	maxBytes int64
}

type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	timeout      time.Duration
	maxBytes     int64
	allowPrivate bool
}

func WithTimeout(d time.Duration) LoaderOption {
	return func(c *loaderConfig) { c.timeout = d }
}

func WithMaxBytes(n int64) LoaderOption {
	return func(c *loaderConfig) { c.maxBytes = n }
}

// WithPrivateAddresses lets the loader reach loopback and private networks.
// Only for local setups and tests.
func WithPrivateAddresses() LoaderOption {
	return func(c *loaderConfig) { c.allowPrivate = true }
}

func NewHTTPImageLoader(opts ...LoaderOption) *HTTPImageLoader {
	cfg := loaderConfig{timeout: 10 * time.Second, maxBytes: MaxImageBytes}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := &net.Dialer{Timeout: cfg.timeout}
	if !cfg.allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := &http.Transport{
		// No proxy: the dial guard must see the real destination.
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.timeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPImageLoader{
		client:   &http.Client{Timeout: cfg.timeout, Transport: transport},
		maxBytes: cfg.maxBytes,
	}
}

func (l *HTTPImageLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrForbiddenURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loading image %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > l.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrImageTooLarge, humanize.Bytes(uint64(resp.ContentLength)))
	}

	body := &limitedReader{r: io.LimitReader(resp.Body, l.maxBytes+1), max: l.maxBytes}
	img, _, err := image.Decode(body)
	if body.exceeded {
		return nil, fmt.Errorf("%w: over %s", ErrImageTooLarge, humanize.Bytes(uint64(l.maxBytes)))
	}
	return img, err
}

// limitedReader reports when more than max bytes were offered.
type limitedReader struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		l.exceeded = true
		return n, ErrImageTooLarge
	}
	return n, err
}

var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	return nil
}

func isPublic(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}
