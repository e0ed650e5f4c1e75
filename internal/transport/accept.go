package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

// Accept takes a single pending connection, waiting at most for the given period. Both
// returned values are nil if nothing came in time.
func Accept(l *net.TCPListener, wait time.Duration) (*net.TCPConn, error) {
	if err := l.SetDeadline(time.Now().Add(wait)); err != nil {
		return nil, err
	}

	conn, err := l.AcceptTCP()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}

		return nil, err
	}

	return conn, nil
}
