package vendors

import (
	"errors"
	"fmt"

	"github.com/engagic/engagic/internal/types"
)

// ErrorKind classifies adapter failures for the retry ladder.
type ErrorKind string

const (
	// KindHTTP covers transport failures and non-2xx responses. Retryable.
	KindHTTP ErrorKind = "http"
	// KindParsing covers response shapes we no longer understand (vendor
	// changed their HTML/JSON). Not retryable; retrying reparses the same
	// bytes.
	KindParsing ErrorKind = "parsing"
	// KindUnsupported marks operations a vendor cannot perform at all.
	KindUnsupported ErrorKind = "unsupported"
)

// VendorError is the only error type adapters return. It always carries
// the vendor, the city, and the underlying cause; adapters never return
// nil data with a nil error on failure.
type VendorError struct {
	Vendor types.Vendor
	Banana string
	Kind   ErrorKind
	URL    string
	Err    error
}

func (e *VendorError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s adapter (%s): %s error at %s: %v", e.Vendor, e.Banana, e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s adapter (%s): %s error: %v", e.Vendor, e.Banana, e.Kind, e.Err)
}

func (e *VendorError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt through
// the queue ladder. Only transport-level failures qualify.
func (e *VendorError) Retryable() bool { return e.Kind == KindHTTP }

// IsRetryable classifies an arbitrary error from the vendor layer.
// Unknown errors count as retryable; the ladder caps the damage.
func IsRetryable(err error) bool {
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Retryable()
	}
	return true
}

func (b *base) httpError(url string, err error) *VendorError {
	return &VendorError{Vendor: b.city.Vendor, Banana: b.city.Banana, Kind: KindHTTP, URL: url, Err: err}
}

func (b *base) parsingError(url string, err error) *VendorError {
	return &VendorError{Vendor: b.city.Vendor, Banana: b.city.Banana, Kind: KindParsing, URL: url, Err: err}
}

func (b *base) unsupported(op string) *VendorError {
	return &VendorError{Vendor: b.city.Vendor, Banana: b.city.Banana, Kind: KindUnsupported, Err: errors.New(op + " not supported")}
}
