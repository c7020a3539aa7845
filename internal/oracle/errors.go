package oracle

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var oraCodeRe = regexp.MustCompile(`ORA-(\d{5})`)

// Codes Oracle reports when the session or the listener is gone.
var connectionCodes = map[int]struct{}{
	1012:  {}, // not logged on
	1033:  {}, // initialization or shutdown in progress
	1034:  {}, // oracle not available
	1089:  {}, // immediate shutdown in progress
	2396:  {}, // exceeded maximum idle time
	3113:  {}, // end-of-file on communication channel
	3114:  {}, // not connected to oracle
	3135:  {}, // connection lost contact
	12170: {}, // connect timeout occurred
	12514: {}, // listener does not know of service
	12537: {}, // connection closed
	12541: {}, // no listener
	12543: {}, // destination host unreachable
	12545: {}, // target host or object does not exist
}

// ErrorCode returns the first ORA-NNNNN code found in err's message, or 0.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	m := oraCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// database/sql does not export its closed-pool error.
const poolClosedMsg = "sql: database is closed"

func isPoolClosed(err error) bool {
	return err != nil && err.Error() == poolClosedMsg
}

// IsConnectionError reports whether err means the database could not be
// reached or the session was lost, as opposed to the statement being wrong.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(err.Error(), poolClosedMsg) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	_, ok := connectionCodes[ErrorCode(err)]
	return ok
}
