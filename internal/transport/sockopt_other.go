//go:build !unix

package transport

import (
	"errors"
	"syscall"
)

func reuseAddrControl(network, address string, c syscall.RawConn) error { return nil }

func isBindError(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
