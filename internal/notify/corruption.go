package notify

import (
	"errors"
	"strings"
)

// DefaultNamespace prefixes the keys a platform persists its schedule under.
const DefaultNamespace = "notify"

// purgeTokens select persisted keys that belong to the schedule even when
// they live outside the namespace.
var purgeTokens = []string{"scheduled_notification", "pending_notification", "notification"}

// corruptionSignatures are error texts that platform bindings without typed
// errors produce when their persisted schedule no longer decodes.
var corruptionSignatures = []string{
	"missing type parameter",
	"corrupt",
	"unexpected end of json input",
	"cannot unmarshal",
}

// corruptStater is implemented by platform errors that know whether they
// stem from corrupted persisted state.
type corruptStater interface {
	CorruptState() bool
}

// IsCorruption reports whether err signals corrupted platform state. Typed
// errors are checked first; matching on the error text is a last resort for
// bindings that only return strings.
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCorruptState) {
		return true
	}
	var cs corruptStater
	if errors.As(err, &cs) {
		return cs.CorruptState()
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range corruptionSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsPermission reports whether err signals a missing permission.
func IsPermission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrPermission) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "permission")
}

// shouldPurge reports whether a persisted key is schedule state.
func shouldPurge(key, namespace string) bool {
	if namespace != "" && strings.Contains(key, namespace) {
		return true
	}
	for _, tok := range purgeTokens {
		if strings.Contains(key, tok) {
			return true
		}
	}
	return false
}
