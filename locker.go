package filemutex

// Locker is the exclusive lock/unlock capability pair. FileMutex
// implements it, as can any other type whose acquisition may fail.
type Locker interface {
	Lock() error
	Unlock() error
}

// SharedLocker is the shared lock/unlock capability pair.
type SharedLocker interface {
	RLock() error
	RUnlock() error
}

// With runs fn while holding l exclusively. The lock is released on all
// exit paths, including a panic inside fn. A release failure is reported
// only when fn itself succeeded.
func With(l Locker, fn func() error) (err error) {
	if lockErr := l.Lock(); lockErr != nil {
		return lockErr
	}
	defer func() {
		if unlockErr := l.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()
	return fn()
}

// WithShared runs fn while holding shared ownership of l. The lock is
// released on all exit paths, including a panic inside fn. A release
// failure is reported only when fn itself succeeded.
func WithShared(l SharedLocker, fn func() error) (err error) {
	if lockErr := l.RLock(); lockErr != nil {
		return lockErr
	}
	defer func() {
		if unlockErr := l.RUnlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()
	return fn()
}
