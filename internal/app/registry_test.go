package app

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	registry := NewFlowRegistry(time.Minute)
	c := newTestCoordinator(&billerStub{}, &journalStub{}, nil, nil)

	registry.Register("123", c)
	got, err := registry.Lookup("123")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got != c {
		t.Fatal("lookup returned a different coordinator")
	}
}

func TestRegistryLookupUnknownID(t *testing.T) {
	registry := NewFlowRegistry(time.Minute)
	if _, err := registry.Lookup("missing"); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := NewFlowRegistry(time.Minute)
	registry.Register("123", newTestCoordinator(&billerStub{}, &journalStub{}, nil, nil))
	registry.Remove("123")
	if _, err := registry.Lookup("123"); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound after remove, got %v", err)
	}
}

func TestRegistryExpiresEntries(t *testing.T) {
	registry := NewFlowRegistry(time.Minute)
	now := time.Now()
	registry.now = func() time.Time { return now }

	registry.Register("123", newTestCoordinator(&billerStub{}, &journalStub{}, nil, nil))

	registry.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := registry.Lookup("123"); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

func TestRegistrySweepsOnRegister(t *testing.T) {
	registry := NewFlowRegistry(time.Minute)
	now := time.Now()
	registry.now = func() time.Time { return now }

	registry.Register("old", newTestCoordinator(&billerStub{}, &journalStub{}, nil, nil))

	registry.now = func() time.Time { return now.Add(2 * time.Minute) }
	registry.Register("new", newTestCoordinator(&billerStub{}, &journalStub{}, nil, nil))

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.entries["old"]; ok {
		t.Fatal("expired entry must be swept on register")
	}
	if _, ok := registry.entries["new"]; !ok {
		t.Fatal("fresh entry must survive the sweep")
	}
}
