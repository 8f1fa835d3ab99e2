package chat

import "errors"

var (
	// ErrTransportDisabled is returned when the chat transport capability was
	// disabled at startup.
	ErrTransportDisabled = errors.New("chat transport disabled")
	// ErrInvalidConfig means required credential fields are missing. No
	// network I/O is ever attempted in this case.
	ErrInvalidConfig = errors.New("chat configuration incomplete")
	// ErrNoToken means no legacy token and no access token is configured.
	ErrNoToken = errors.New("no chat token configured")
	// ErrUnrefreshable means the access token was rejected and no refresh
	// token or client credentials exist to recover; the operator must
	// re-enter credentials.
	ErrUnrefreshable = errors.New("chat token invalid and cannot be refreshed")
	// ErrRefreshFailed means the refresh-token exchange errored. A later call
	// may succeed; the manager does not retry on its own.
	ErrRefreshFailed = errors.New("chat token refresh failed")
	// ErrNoActiveSession is returned by SendMessage outside the Connected state.
	ErrNoActiveSession = errors.New("no active chat session")
	// ErrSessionFailed means a connect attempt errored.
	ErrSessionFailed = errors.New("chat session connect failed")
	// ErrProbeTimeout means a connectivity probe exceeded its deadline.
	ErrProbeTimeout = errors.New("connectivity probe timed out")
)
