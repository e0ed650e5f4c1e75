//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package poller

func New() (Poller, error) {
	return nil, ErrUnsupported
}
