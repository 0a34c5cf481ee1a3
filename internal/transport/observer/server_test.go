package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quarrysim.ai/internal/observerproto"
	"quarrysim.ai/internal/sim/world"
)

type fakeWorld struct {
	join  chan world.ObserverJoinRequest
	leave chan string
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{join: make(chan world.ObserverJoinRequest, 1), leave: make(chan string, 1)}
}

func (f *fakeWorld) Config() world.WorldConfig { return world.WorldConfig{ID: "w1", TickRateHz: 5} }
func (f *fakeWorld) RunID() string             { return "run-1" }
func (f *fakeWorld) CurrentTick() uint64       { return 12 }
func (f *fakeWorld) TableShares() []observerproto.TableShare {
	return []observerproto.TableShare{{Kind: "Steel", Weight: 300, Percent: 60}}
}
func (f *fakeWorld) ObserverJoin() chan<- world.ObserverJoinRequest { return f.join }
func (f *fakeWorld) ObserverLeave() chan<- string                   { return f.leave }

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:9000": true,
		"[::1]:9000":     true,
		"10.0.0.4:9000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := IsLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

func TestBootstrapHandler(t *testing.T) {
	s := NewServer(newFakeWorld(), nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rr := httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldID != "w1" || resp.RunID != "run-1" || resp.Tick != 12 || len(resp.Table) != 1 {
		t.Fatalf("unexpected bootstrap: %+v", resp)
	}

	req.RemoteAddr = "10.1.1.1:5000"
	rr = httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for remote peer, got %d", rr.Code)
	}
}

func TestWSHandler_SubscribeAndReceive(t *testing.T) {
	fw := newFakeWorld()
	srv := httptest.NewServer(NewServer(fw, nil).WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, SiteID: " S1 "}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var join world.ObserverJoinRequest
	select {
	case join = <-fw.join:
	case <-time.After(2 * time.Second):
		t.Fatalf("no join request")
	}
	if join.SiteID != "S1" || join.SessionID == "" {
		t.Fatalf("unexpected join: %+v", join)
	}
	join.TickOut <- []byte(`{"type":"TICK","tick":3}`)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), `"tick":3`) {
		t.Fatalf("unexpected message %s", msg)
	}

	_ = conn.Close()
	select {
	case id := <-fw.leave:
		if id != join.SessionID {
			t.Fatalf("leave for %s, want %s", id, join.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no leave after close")
	}
}
