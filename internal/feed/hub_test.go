package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
	"git.lost.host/meutraa/judgeline/internal/score"
	"git.lost.host/meutraa/judgeline/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
)

func connect(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if nil != err {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestPublish(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewHub(log)
	conn := connect(t, h)

	id := uuid.New()
	h.Publish(session.Update{Session: id})
	h.Publish(session.Update{
		Session: id,
		Now:     time.Second,
		Events:  []game.Event{{Note: 3, Kind: game.Good, Offset: -90 * time.Millisecond, At: time.Second}},
		Score:   score.State{Total: 10, Combo: 4},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if nil != err {
		t.Fatal(err)
	}
	var got session.Update
	if err := json.Unmarshal(data, &got); nil != err {
		t.Fatal(err)
	}
	if got.Session != id {
		t.Errorf("empty update should be skipped, got %s", data)
	}
	if len(got.Events) != 1 || got.Events[0].Note != 3 || got.Events[0].Kind != game.Good {
		t.Errorf("unexpected events %+v", got.Events)
	}
	if got.Score.Combo != 4 {
		t.Errorf("unexpected score %+v", got.Score)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewHub(log)
	connect(t, h)

	u := session.Update{Events: []game.Event{{Kind: game.Perfect}}}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*bufferSize; i++ {
			h.Publish(u)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a client that does not read")
	}
}

func TestClose(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewHub(log)
	conn := connect(t, h)

	h.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close, got %v", err)
	}
	if h.Subscribers() != 0 {
		t.Errorf("%d subscribers left", h.Subscribers())
	}
}
