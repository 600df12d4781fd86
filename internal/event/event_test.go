package event

import (
	"testing"
)

type fakePlayer struct{ name string }

func (p fakePlayer) Name() string { return p.name }
func (p fakePlayer) SendMessage(string) {}
func (p fakePlayer) HasPermission(string) bool { return false }

type recorder struct {
	NopHandler
	tag  string
	seen *[]string
}

func (r recorder) HandleJoin(p Player) { *r.seen = append(*r.seen, r.tag+":join:"+p.Name()) }

type panicker struct{ NopHandler }

func (panicker) HandleJoin(Player) { panic("boom") }

func TestDispatchOrder(t *testing.T) {
	b := NewBus()
	var seen []string
	b.Subscribe("a", recorder{tag: "first", seen: &seen})
	b.Subscribe("b", recorder{tag: "second", seen: &seen})

	b.Join(fakePlayer{"steve"})
	b.Quit(fakePlayer{"steve"})

	if len(seen) != 2 || seen[0] != "first:join:steve" || seen[1] != "second:join:steve" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	var seen []string
	id := b.Subscribe("a", recorder{tag: "x", seen: &seen})
	b.Unsubscribe(id)
	b.Join(fakePlayer{"alex"})
	if len(seen) != 0 {
		t.Fatalf("unsubscribed handler ran: %v", seen)
	}
}

func TestUnsubscribeOwner(t *testing.T) {
	b := NewBus()
	var seen []string
	b.Subscribe("mine", recorder{tag: "m1", seen: &seen})
	b.Subscribe("mine", recorder{tag: "m2", seen: &seen})
	b.Subscribe("other", recorder{tag: "o", seen: &seen})

	b.UnsubscribeOwner("mine")
	if b.Len("mine") != 0 || b.Len("") != 1 {
		t.Fatalf("Len mine=%d all=%d", b.Len("mine"), b.Len(""))
	}
	b.Join(fakePlayer{"alex"})
	if len(seen) != 1 || seen[0] != "o:join:alex" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestPanickingHandlerIsRecovered(t *testing.T) {
	b := NewBus()
	var seen []string
	b.Subscribe("bad", panicker{})
	b.Subscribe("good", recorder{tag: "g", seen: &seen})

	b.Join(fakePlayer{"herobrine"})
	if len(seen) != 1 {
		t.Fatalf("handler after panic did not run: %v", seen)
	}
}

func TestNilHandlerIgnored(t *testing.T) {
	b := NewBus()
	if id := b.Subscribe("x", nil); id != 0 {
		t.Fatalf("id = %d, want 0", id)
	}
	if b.Len("") != 0 {
		t.Fatal("nil handler should not be stored")
	}
}
