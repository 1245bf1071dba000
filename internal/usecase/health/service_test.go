package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStoragePinger struct {
	err error
}

func (m *mockStoragePinger) Ping(_ context.Context) error { return m.err }

type mockGenerationChecker struct {
	err error
}

func (m *mockGenerationChecker) HealthCheck(_ context.Context) error { return m.err }

type mockArchivePinger struct {
	err error
}

func (m *mockArchivePinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStoragePinger{}, &mockGenerationChecker{}, &mockArchivePinger{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"storage", "generation", "archive"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_StorageError(t *testing.T) {
	svc := New(
		&mockStoragePinger{err: errors.New("conn refused")},
		&mockGenerationChecker{},
		&mockArchivePinger{},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["storage"] != CheckError {
		t.Errorf("expected storage %q, got %q", CheckError, r.Checks["storage"])
	}
	if r.Checks["generation"] != CheckOK {
		t.Errorf("expected generation %q, got %q", CheckOK, r.Checks["generation"])
	}
}

func TestCheck_GenerationError(t *testing.T) {
	svc := New(
		&mockStoragePinger{},
		&mockGenerationChecker{err: errors.New("timeout")},
		&mockArchivePinger{},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["generation"] != CheckError {
		t.Errorf("expected generation %q, got %q", CheckError, r.Checks["generation"])
	}
	if r.Checks["archive"] != CheckOK {
		t.Errorf("expected archive %q, got %q", CheckOK, r.Checks["archive"])
	}
}

func TestCheck_ArchiveError(t *testing.T) {
	svc := New(
		&mockStoragePinger{},
		&mockGenerationChecker{},
		&mockArchivePinger{err: errors.New("502 bad gateway")},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["archive"] != CheckError {
		t.Errorf("expected archive %q, got %q", CheckError, r.Checks["archive"])
	}
}

func TestCheck_AllFail(t *testing.T) {
	svc := New(
		&mockStoragePinger{err: errors.New("storage down")},
		&mockGenerationChecker{err: errors.New("generation down")},
		&mockArchivePinger{err: errors.New("archive down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	for _, name := range []string{"storage", "generation", "archive"} {
		if r.Checks[name] != CheckError {
			t.Errorf("expected %s error", name)
		}
	}
}

func TestCheck_OptionalComponentsAbsent(t *testing.T) {
	svc := New(&mockStoragePinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["storage"] != CheckOK {
		t.Errorf("expected storage %q, got %q", CheckOK, r.Checks["storage"])
	}
	if _, ok := r.Checks["generation"]; ok {
		t.Error("generation check should be absent when generation is nil")
	}
	if _, ok := r.Checks["archive"]; ok {
		t.Error("archive check should be absent when archive is nil")
	}
}
