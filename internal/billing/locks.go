package billing

import "sync"

// tenantLocks serializes rollover and usage appends per tenant. Operations
// across distinct tenants never contend.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[string]*sync.Mutex)}
}

func (tl *tenantLocks) get(tenantID string) *sync.Mutex {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	l, ok := tl.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		tl.locks[tenantID] = l
	}
	return l
}

// Lock acquires the tenant's mutex and returns the unlock function
func (tl *tenantLocks) Lock(tenantID string) func() {
	l := tl.get(tenantID)
	l.Lock()
	return l.Unlock
}
