package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/convo/internal/adapters/presence"
	"github.com/dkeye/convo/internal/adapters/signal"
	"github.com/dkeye/convo/internal/app"
	"github.com/dkeye/convo/internal/app/orch"
	"github.com/dkeye/convo/internal/config"
	"github.com/dkeye/convo/internal/core"
	"github.com/gorilla/websocket"
)

func newTestRouter(t *testing.T) (*httptest.Server, *presence.MemoryStore) {
	t.Helper()
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>convo</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Mode: "test", StaticPath: static, Secret: "test-secret"}

	store := presence.NewMemoryStore()
	reg := app.NewRegistry()
	out := app.NewBroadcaster(reg, nil)
	pres := app.NewPresence(reg, out, store)
	o := orch.New(reg, out, pres, app.NewGroupCalls(app.DefaultGroupMax))

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	go pres.Run(ctx)

	r := SetupRouter(ctx, cfg, Deps{
		Orch:     o,
		Signal:   signal.NewSignalWSController(o, signal.Options{}),
		Presence: store,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		store.Close()
	})
	return srv, store
}

func TestIndexAndSessionCookie(t *testing.T) {
	srv, _ := newTestRouter(t)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "ConvoSessions" {
			found = true
		}
	}
	if !found {
		t.Fatal("session cookie not set")
	}
}

func TestRootAcceptsWebsocketAndRoomsReflectsJoin(t *testing.T) {
	srv, _ := newTestRouter(t)
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
	if err != nil {
		t.Fatalf("dial root: %v", err)
	}
	defer ws.Close()
	if err := ws.WriteJSON(map[string]string{"type": "join", "nickname": "alice", "roomId": "R1"}); err != nil {
		t.Fatal(err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var m map[string]any
		if err := ws.ReadJSON(&m); err != nil {
			t.Fatal(err)
		}
		if m["type"] == "user-list" {
			break
		}
	}

	resp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rooms []orch.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].Room != "R1" || rooms[0].Members != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}
}

func TestPresenceList(t *testing.T) {
	srv, store := newTestRouter(t)
	_ = store.MarkOnline(context.Background(), "bob", "R1", time.Now())

	resp, err := http.Get(srv.URL + "/api/presence")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var recs []core.PresenceRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Name != "bob" || !recs[0].Online {
		t.Fatalf("records = %+v", recs)
	}
}

func TestPresenceStream(t *testing.T) {
	srv, store := newTestRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// The subscription may register after the first mark; keep marking
	// until one lands.
	go func() {
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				_ = store.MarkOnline(context.Background(), "carol", "R2", time.Now())
			}
		}
	}()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/presence/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data:") {
			if !strings.Contains(line, `"carol"`) {
				t.Fatalf("unexpected event %q", line)
			}
			return
		}
	}
	t.Fatalf("stream ended without event: %v", sc.Err())
}
