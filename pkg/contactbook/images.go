package contactbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/utils/cloudflare"
	"contactbook_backend/pkg/utils/image"
	"contactbook_backend/pkg/utils/validation"
)

// Images re-encodes contact images and moves them in and out of the store.
type Images struct {
	store cloudflare.ImageStore
	http  *http.Client
	log   *logger.Logger
}

// NewImages returns an Images backed by store. A nil store disables uploads.
func NewImages(store cloudflare.ImageStore, timeout time.Duration, log *logger.Logger) *Images {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Images{store: store, http: publicOnlyClient(timeout), log: log}
}

// WithHTTPClient replaces the download client. The default client refuses
// private and loopback addresses; tests pointing at httptest servers need this.
func (i *Images) WithHTTPClient(c *http.Client) *Images {
	i.http = c
	return i
}

var errBlockedAddress = errors.New("address is not publicly routable")

// cgnat is the shared address space of RFC 6598.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// publicOnlyClient dials only public unicast addresses. The check runs on the
// resolved address so DNS names and redirects cannot reach internal hosts.
func publicOnlyClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, Control: dialPublicOnly}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func dialPublicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	if !isPublicAddr(addr) {
		return fmt.Errorf("%w: %s", errBlockedAddress, addr)
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		cgnat.Contains(addr):
		return false
	}
	return true
}

func (i *Images) Enabled() bool {
	return i != nil && i.store != nil
}

var errStorageDisabled = apperror.New(apperror.KindUpstream, "image storage is not configured")

// Store re-encodes r and uploads it under owner's prefix.
func (i *Images) Store(ctx context.Context, owner string, r io.Reader) (string, error) {
	if !i.Enabled() {
		return "", errStorageDisabled
	}
	processed, err := image.Process(r)
	if err != nil {
		return "", apperror.InvalidInput("invalid image",
			apperror.FieldError{Field: "image", Message: "must be a JPG, PNG or WEBP image up to 10MB"})
	}
	return i.upload(ctx, owner, processed)
}

// Ingest downloads sourceURL and stores it like an upload.
func (i *Images) Ingest(ctx context.Context, owner, sourceURL string) (string, error) {
	if !i.Enabled() {
		return "", errStorageDisabled
	}
	if !validation.IsURL(sourceURL) {
		return "", apperror.InvalidInput("invalid image url",
			apperror.FieldError{Field: "url", Message: "must be a valid URL"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", apperror.InvalidInput("invalid image url",
			apperror.FieldError{Field: "url", Message: "must be a valid URL"})
	}
	resp, err := i.http.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddress) {
			return "", apperror.Upstream(err, "image source address is not allowed")
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", apperror.Wrap(err, apperror.KindUpstreamTimeout, "image download timed out")
		}
		return "", apperror.Upstream(err, "failed to download image")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperror.Upstream(fmt.Errorf("image source status %d", resp.StatusCode), "failed to download image")
	}

	processed, err := image.Process(resp.Body)
	if err != nil {
		return "", apperror.Upstream(err, "source is not a supported image")
	}
	return i.upload(ctx, owner, processed)
}

func (i *Images) upload(ctx context.Context, owner string, p *image.Processed) (string, error) {
	res, err := i.store.Upload(ctx, cloudflare.UploadImageConfig{
		Body:        p.Reader(),
		Size:        int64(len(p.Data)),
		ContentType: p.ContentType,
		Ext:         p.Ext,
		Owner:       owner,
	})
	if err != nil {
		i.log.Error("image upload failed", "owner", owner, "error", err)
		return "", apperror.Upstream(err, "failed to store image")
	}
	return res.URL, nil
}

// Discard deletes url from the store when the store owns it. Failures are
// logged and swallowed.
func (i *Images) Discard(ctx context.Context, url string) {
	if !i.Enabled() || url == "" || !i.store.Owns(url) {
		return
	}
	if err := i.store.Delete(ctx, url); err != nil {
		i.log.Warn("image delete failed", "url", url, "error", err)
	}
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
