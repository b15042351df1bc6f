package dbexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes outside class 08 that also mean the session is gone.
var pqConnectionCodes = map[pq.ErrorCode]struct{}{
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
}

// MySQL error numbers that mean the server dropped the session.
var mysqlConnectionErrors = map[uint16]struct{}{
	1053: {}, // ER_SERVER_SHUTDOWN
	2006: {}, // CR_SERVER_GONE_ERROR
	2013: {}, // CR_SERVER_LOST
}

// IsConnectionError reports whether err means the session is broken, as
// opposed to the statement being rejected.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	// Context errors satisfy net.Error; the session is still fine.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		_, ok := pqConnectionCodes[pqErr.Code]
		return ok
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		_, ok := mysqlConnectionErrors[mysqlErr.Number]
		return ok
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func reasonFor(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Detail != "" {
		return pqErr.Message + ": " + pqErr.Detail
	}
	return err.Error()
}
