package usage

import (
	"testing"
	"time"

	"github.com/datachat/backend/internal/storage/models"
	"github.com/datachat/backend/internal/storage/sqlite"
)

func newTestStore(t *testing.T, userID, tier string) *sqlite.Client {
	t.Helper()

	store, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	user := &models.User{
		ID:             userID,
		Username:       "tester",
		Email:          "tester@example.com",
		HashedPassword: "x",
		Tier:           tier,
		IsActive:       true,
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return store
}

func TestFreeTierDeniedAtLimit(t *testing.T) {
	store := newTestStore(t, "u1", "free")
	gate := NewGate(store)

	for i := 0; i < 10; i++ {
		d, err := gate.RecordAndCheck("u1", "free", "chat")
		if err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("check %d denied, expected allowed (used=%d)", i+1, d.Used)
		}
		if d.Used != i {
			t.Errorf("check %d reported used=%d, want %d", i+1, d.Used, i)
		}
	}

	d, err := gate.RecordAndCheck("u1", "free", "chat")
	if err != nil {
		t.Fatalf("11th check failed: %v", err)
	}
	if d.Allowed {
		t.Error("11th action allowed, expected denial at free limit")
	}
	if d.Used != 10 || d.Limit != 10 {
		t.Errorf("denial reported used=%d limit=%d, want 10/10", d.Used, d.Limit)
	}
}

func TestDenialDoesNotConsumeQuota(t *testing.T) {
	store := newTestStore(t, "u1", "free")
	gate := NewGate(store)

	for i := 0; i < 10; i++ {
		if _, err := gate.RecordAndCheck("u1", "free", "chat"); err != nil {
			t.Fatalf("setup check failed: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		d, err := gate.RecordAndCheck("u1", "free", "chat")
		if err != nil {
			t.Fatalf("denied check errored: %v", err)
		}
		if d.Allowed {
			t.Fatal("expected denial")
		}
		if d.Used != 10 {
			t.Errorf("denied attempt %d reported used=%d, want 10", i+1, d.Used)
		}
	}
}

func TestEnterpriseTierUnlimited(t *testing.T) {
	store := newTestStore(t, "u1", "enterprise")
	gate := NewGate(store)

	for i := 0; i < 25; i++ {
		d, err := gate.RecordAndCheck("u1", "enterprise", "chat")
		if err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("enterprise check %d denied", i+1)
		}
		if d.Limit != -1 {
			t.Errorf("expected limit -1, got %d", d.Limit)
		}
	}
}

func TestActionsCountedSeparately(t *testing.T) {
	store := newTestStore(t, "u1", "free")
	gate := NewGate(store)

	for i := 0; i < 10; i++ {
		if _, err := gate.RecordAndCheck("u1", "free", "chat"); err != nil {
			t.Fatalf("setup check failed: %v", err)
		}
	}

	d, err := gate.RecordAndCheck("u1", "free", "upload")
	if err != nil {
		t.Fatalf("upload check failed: %v", err)
	}
	if !d.Allowed {
		t.Error("upload denied, expected per-action counting")
	}
	if d.Used != 0 {
		t.Errorf("upload reported used=%d, want 0", d.Used)
	}
}

func TestRecordsOutsideWindowIgnored(t *testing.T) {
	store := newTestStore(t, "u1", "free")
	gate := NewGate(store)

	stale := &models.UsageRecord{
		UserID:    "u1",
		Action:    "chat",
		Timestamp: time.Now().Add(-25 * time.Hour),
	}
	for i := 0; i < 10; i++ {
		if err := store.InsertUsageRecord(stale); err != nil {
			t.Fatalf("failed to insert stale record: %v", err)
		}
	}

	d, err := gate.RecordAndCheck("u1", "free", "chat")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !d.Allowed {
		t.Error("denied despite all records outside the window")
	}
	if d.Used != 0 {
		t.Errorf("reported used=%d, want 0", d.Used)
	}
}

func TestUnknownTierFallsBackToFree(t *testing.T) {
	if got := LimitFor("platinum"); got != 10 {
		t.Errorf("unknown tier limit = %d, want free limit 10", got)
	}
}
