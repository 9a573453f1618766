package protocol

const (
	// Engine link validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrHostBusy        = "E_HOST_BUSY"

	// Command execution on the host.
	ErrExecFailed = "E_EXEC_FAILED"
	ErrQueueFull  = "E_QUEUE_FULL"

	// HTTP surface.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrNotFound     = "E_NOT_FOUND"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrHostBusy:        {},
	ErrExecFailed:      {},
	ErrQueueFull:       {},
	ErrBadRequest:      {},
	ErrUnauthorized:    {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
