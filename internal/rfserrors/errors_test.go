package rfserrors

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToErrnoNil(t *testing.T) {
	assert.Equal(t, 0, ToErrno(nil))
}

func TestToErrnoKinds(t *testing.T) {
	for _, test := range []struct {
		name string
		err  error
		want int
	}{
		{"transport", &TransportFailure{Err: errors.New("dial tcp: refused")}, -int(syscall.EINVAL)},
		{"system", &SystemFailure{Errno_: syscall.ENOENT}, -int(syscall.ENOENT)},
		{"protocol", &ProtocolViolation{Op: "open", Code: syscall.EMFILE}, -int(syscall.EMFILE)},
		{"access", &AccessConflict{Path: "/a"}, -int(syscall.EACCES)},
		{"lock", &LockFailure{Err: errors.New("boom")}, -int(syscall.EIO)},
		{"registration", &RegistrationFailure{Proc: "getattr", Err: errors.New("boom")}, -int(syscall.EIO)},
		{"bare errno", syscall.EROFS, -int(syscall.EROFS)},
		{"opaque", errors.New("potato"), -int(syscall.EINVAL)},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ToErrno(test.err))
		})
	}
}

func TestToErrnoWrapped(t *testing.T) {
	err := fmt.Errorf("getattr on /a: %w", &SystemFailure{Errno_: syscall.ENOENT})
	assert.Equal(t, -int(syscall.ENOENT), ToErrno(err))
}

func TestAccessConflictMessage(t *testing.T) {
	err := &AccessConflict{Path: "/b"}
	assert.Contains(t, err.Error(), "/b")
	assert.Equal(t, syscall.EACCES, err.Errno())
}
