package ws

import "testing"

func TestHubAddAndRemoveSessionClient(t *testing.T) {
	hub := NewHub()

	hub.AddSessionClient(1, nil, ConnInfo{ConnID: "c1", UserID: 1})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected session room to be created")
	}

	hub.RemoveSessionClient(1, nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected session room to be removed")
	}
}

func TestHubRemoveUnknownClient(t *testing.T) {
	hub := NewHub()

	hub.RemoveSessionClient(99, nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected no rooms")
	}
}
