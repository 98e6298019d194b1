package chatws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pilhia/pilhia/internal/dialogue"
	"github.com/pilhia/pilhia/internal/domain"
	"github.com/pilhia/pilhia/internal/potentials"
	"github.com/pilhia/pilhia/internal/session"
)

type stubLLM struct{ reply string }

func (s stubLLM) Complete(context.Context, string, string) (string, error) { return s.reply, nil }
func (s stubLLM) Available() bool                                          { return true }

type stubBank struct{}

func (stubBank) Draw() (*domain.QuizQuestion, bool) { return nil, false }

type stubCorpus struct{}

func (stubCorpus) Excerpt(int) string { return "" }

func newTestHandler() (*Handler, *session.Store) {
	store := session.NewStore(20, 10, 10)
	engine := dialogue.New(
		stubBank{},
		potentials.NewTable(map[string]float64{"cobre": 0.34, "zinco": -0.76}),
		stubLLM{reply: "resposta da IA"},
		stubCorpus{},
		dialogue.DefaultLimits(),
	)
	return NewHandler(store, engine, nil, "*", true), store
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn, ctx
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, frame queryFrame) answerFrame {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var reply answerFrame
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	return reply
}

func TestWebSocketChatExchange(t *testing.T) {
	handler, store := newTestHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, ctx := dial(t, srv)

	reply := roundTrip(t, ctx, conn, queryFrame{Query: "o que é uma pilha?"})
	if reply.Answer != "resposta da IA" {
		t.Errorf("unexpected answer %q", reply.Answer)
	}
	if reply.ChatID == "" {
		t.Fatal("expected minted chat_id")
	}
	if _, ok := store.Get(reply.ChatID); !ok {
		t.Error("expected session registered in the store")
	}

	// Same connection, same chat id keeps the conversation.
	again := roundTrip(t, ctx, conn, queryFrame{
		Query:  "calcular a voltagem de uma pilha de cobre e zinco",
		ChatID: reply.ChatID,
	})
	if again.ChatID != reply.ChatID {
		t.Errorf("chat id changed across frames: %q vs %q", again.ChatID, reply.ChatID)
	}
	if want := "A voltagem da pilha com Cobre e Zinco é de 1.10 V."; again.Answer != want {
		t.Errorf("got %q, want %q", again.Answer, want)
	}
}

func TestWebSocketEmptyQuery(t *testing.T) {
	handler, _ := newTestHandler()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, ctx := dial(t, srv)

	reply := roundTrip(t, ctx, conn, queryFrame{Query: ""})
	if reply.Error != "Query vazia" {
		t.Errorf("expected error frame, got %+v", reply)
	}
}

func TestWebSocketOriginRejected(t *testing.T) {
	store := session.NewStore(20, 10, 10)
	engine := dialogue.New(stubBank{}, potentials.NewTable(nil), stubLLM{}, stubCorpus{}, dialogue.DefaultLimits())
	handler := NewHandler(store, engine, nil, "https://pilhia.example", false)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}
