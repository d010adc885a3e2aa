//go:build unix

package buildcache

import (
	"errors"
	"os"
	"syscall"
)

func flock(f *os.File, how int) error {
	for {
		err := syscall.Flock(int(f.Fd()), how)
		if !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
}

func lockShared(f *os.File) error { return flock(f, syscall.LOCK_SH) }
func unlock(f *os.File) error     { return flock(f, syscall.LOCK_UN) }

func tryLockExclusive(f *os.File) error {
	err := flock(f, syscall.LOCK_EX|syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return ErrCacheInUse
	}
	return err
}
