package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPresenceTryRegisterClaimsUsernameOnce(t *testing.T) {
	t.Parallel()

	presence := newPresenceRegistry()
	if !presence.tryRegister("alice", "conn-1") {
		t.Fatal("first registration should be accepted")
	}
	if presence.tryRegister("alice", "conn-2") {
		t.Fatal("second registration for same username should be rejected")
	}
	if !presence.isRegistered("alice") {
		t.Fatal("alice should remain registered after rejected duplicate")
	}
}

func TestPresenceUnregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	presence := newPresenceRegistry()
	if !presence.tryRegister("alice", "conn-1") {
		t.Fatal("registration should be accepted")
	}
	presence.unregister("alice")
	presence.unregister("alice")
	if presence.isRegistered("alice") {
		t.Fatal("alice should be unregistered")
	}
	if !presence.tryRegister("alice", "conn-2") {
		t.Fatal("username should be claimable again after unregister")
	}
}

func TestPresenceConcurrentRegistrationAdmitsExactlyOne(t *testing.T) {
	t.Parallel()

	presence := newPresenceRegistry()
	const attempts = 64

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			if presence.tryRegister("alice", connID) {
				accepted.Add(1)
			}
		}(fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Fatalf("accepted registrations = %d, want exactly 1", got)
	}
}
