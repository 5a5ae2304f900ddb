package storefake

import (
	"sync"

	"github.com/workforcehub/go-session/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. Error fields, when set, are
// returned by the corresponding operation to simulate an unavailable
// backing medium.
type FakeStore struct {
	SaveErr  error
	LoadErr  error
	ClearErr error

	session *session.Session
	saves   int
	lock    sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Save(s *session.Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	copied := *s
	fs.session = &copied
	fs.saves++
	return nil
}

func (fs *FakeStore) Load() (*session.Session, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.LoadErr != nil {
		return nil, fs.LoadErr
	}
	if fs.session == nil {
		return nil, nil
	}
	copied := *fs.session
	return &copied, nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.session = nil
	return nil
}

// Saves returns how many times Save succeeded.
func (fs *FakeStore) Saves() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.saves
}
