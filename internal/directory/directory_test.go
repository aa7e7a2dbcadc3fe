package directory_test

import (
	"testing"

	"github.com/notifyhub/delivery-dispatch/internal/directory"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

func TestDirectory_RegisterLookup(t *testing.T) {
	d := directory.New()
	d.Register(directory.Entry{
		Queue:    "irc.alice",
		Kind:     domain.BackendIRC,
		Identity: "alice",
		Consumer: "ctag-1",
	})

	e, ok := d.Lookup("irc.alice")
	if !ok {
		t.Fatal("expected entry for irc.alice")
	}
	if e.Identity != "alice" || e.Consumer != "ctag-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestDirectory_RegisterIsIdempotent(t *testing.T) {
	d := directory.New()
	d.Register(directory.Entry{Queue: "email.a@b.com", Consumer: "ctag-1"})
	d.Register(directory.Entry{Queue: "email.a@b.com", Consumer: "ctag-2"})

	if d.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", d.Len())
	}
	e, _ := d.Lookup("email.a@b.com")
	if e.Consumer != "ctag-2" {
		t.Fatalf("expected latest registration to win, got consumer %q", e.Consumer)
	}
}

func TestDirectory_UnregisterMissingIsNoOp(t *testing.T) {
	d := directory.New()
	d.Register(directory.Entry{Queue: "irc.alice"})

	d.Unregister("irc.bob") // must not panic or change size
	if d.Len() != 1 {
		t.Fatalf("expected directory size unchanged, got %d", d.Len())
	}

	d.Unregister("irc.alice")
	d.Unregister("irc.alice")
	if d.Len() != 0 {
		t.Fatalf("expected empty directory, got %d", d.Len())
	}
}

func TestDirectory_SnapshotSorted(t *testing.T) {
	d := directory.New()
	d.Register(directory.Entry{Queue: "irc.zed"})
	d.Register(directory.Entry{Queue: "email.a@b.com"})
	d.Register(directory.Entry{Queue: "irc.alice"})

	snap := d.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	want := []string{"email.a@b.com", "irc.alice", "irc.zed"}
	for i, q := range want {
		if snap[i].Queue != q {
			t.Fatalf("snapshot[%d] = %q, want %q", i, snap[i].Queue, q)
		}
	}
}
