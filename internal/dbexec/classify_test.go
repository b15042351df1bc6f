package dbexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"conn done", sql.ErrConnDone, true},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"net op error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"pq connection failure", &pq.Error{Code: "08006", Message: "connection failure"}, true},
		{"pq admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"pq syntax error", &pq.Error{Code: "42601", Message: "syntax error"}, false},
		{"pq undefined table", &pq.Error{Code: "42P01"}, false},
		{"mysql server gone", &mysql.MySQLError{Number: 2006}, true},
		{"mysql syntax", &mysql.MySQLError{Number: 1064}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("division by zero"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConnectionError(tt.err))
		})
	}
}

func TestQueryErrorReason(t *testing.T) {
	err := newQueryError(&pq.Error{Code: "23503", Message: "violates foreign key", Detail: "Key (part_of)=(9) is not present"})
	assert.Equal(t, "violates foreign key: Key (part_of)=(9) is not present", err.Reason)
	assert.False(t, err.ConnectionLevel)

	again := newQueryError(fmt.Errorf("wrapped: %w", err))
	assert.Same(t, err, again)

	conn := newQueryError(driver.ErrBadConn)
	assert.True(t, conn.ConnectionLevel)
	assert.Contains(t, conn.Error(), "connection failed")
	assert.ErrorIs(t, conn, driver.ErrBadConn)
}
