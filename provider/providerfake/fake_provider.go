package providerfake

import (
	"context"
	"sync"

	"github.com/workforcehub/go-session/provider"
)

var _ provider.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable Provider for tests.
type FakeProvider struct {
	SilentEmail      string
	SilentErr        error
	InteractiveEmail string
	InteractiveErr   error
	ClearErr         error

	silentCalls      int
	interactiveCalls int
	clearCalls       int
	lock             sync.Mutex
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

func (fp *FakeProvider) SilentSignIn(_ context.Context) (string, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.silentCalls++
	if fp.SilentErr != nil {
		return "", fp.SilentErr
	}
	return fp.SilentEmail, nil
}

func (fp *FakeProvider) InteractiveSignIn(_ context.Context) (string, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.interactiveCalls++
	if fp.InteractiveErr != nil {
		return "", fp.InteractiveErr
	}
	return fp.InteractiveEmail, nil
}

func (fp *FakeProvider) ClearCache(_ context.Context) error {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.clearCalls++
	return fp.ClearErr
}

func (fp *FakeProvider) SilentCalls() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.silentCalls
}

func (fp *FakeProvider) InteractiveCalls() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.interactiveCalls
}

func (fp *FakeProvider) ClearCalls() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.clearCalls
}
