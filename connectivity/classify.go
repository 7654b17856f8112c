package connectivity

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that mean "the server is going away or refusing
// work", as opposed to a statement-level failure.
var connectionErrNumbers = map[uint16]struct{}{
	1040: {}, // ER_CON_COUNT_ERROR: too many connections
	1042: {}, // ER_BAD_HOST_ERROR
	1043: {}, // ER_HANDSHAKE_ERROR
	1053: {}, // ER_SERVER_SHUTDOWN
	1129: {}, // ER_HOST_IS_BLOCKED
	1130: {}, // ER_HOST_NOT_PRIVILEGED
	1152: {}, // ER_ABORTING_CONNECTION
	1184: {}, // ER_NEW_ABORTING_CONNECTION
	2006: {}, // CR_SERVER_GONE_ERROR
	2013: {}, // CR_SERVER_LOST
}

var connectionErrFragments = []string{
	"connection refused",
	"connection reset",
	"invalid connection",
	"bad connection",
	"connect",
	"timeout",
}

// IsConnectionError reports whether err belongs to the curated
// connection-class set that justifies a failover, rather than a plain query
// error that should surface to the caller as-is.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := connectionErrNumbers[myErr.Number]
		return ok
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range connectionErrFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
