package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mocksh/mocksh-backend/internal/bank"
	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeRedisServer speaks just enough RESP for the session service: it records
// every command it receives and replies with a fixed response per command.
type fakeRedisServer struct {
	ln net.Listener

	mu       sync.Mutex
	commands [][]string
}

func startFakeRedis(t *testing.T) *fakeRedisServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	f := &fakeRedisServer{ln: ln}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRedisServer) addr() string {
	return f.ln.Addr().String()
}

func (f *fakeRedisServer) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handleConn(conn)
	}
}

func (f *fakeRedisServer) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		cmd, err := readRESPCommand(r)
		if err != nil {
			return
		}
		if len(cmd) == 0 {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		var reply string
		switch strings.ToUpper(cmd[0]) {
		case "HELLO":
			// Pretend to be an old server so the client falls back to RESP2.
			reply = "-ERR unknown command 'HELLO'\r\n"
		case "RPUSH", "LPUSH":
			reply = ":1\r\n"
		case "DEL":
			reply = ":0\r\n"
		case "GET":
			reply = "$-1\r\n"
		case "PING":
			reply = "+PONG\r\n"
		default:
			reply = "+OK\r\n"
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func readRESPCommand(r *bufio.Reader) ([]string, error) {
	header, err := readRESPLine(r)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != '*' {
		return nil, fmt.Errorf("unexpected header %q", header)
	}
	n, err := strconv.Atoi(header[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		size, err := readRESPLine(r)
		if err != nil {
			return nil, err
		}
		if len(size) == 0 || size[0] != '$' {
			return nil, fmt.Errorf("unexpected bulk header %q", size)
		}
		l, err := strconv.Atoi(size[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, l+2) // payload + CRLF
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:l]))
	}
	return args, nil
}

func readRESPLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (f *fakeRedisServer) commandsNamed(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, cmd := range f.commands {
		if strings.EqualFold(cmd[0], name) {
			out = append(out, append([]string(nil), cmd...))
		}
	}
	return out
}

func writeTestBank(t *testing.T, n int) string {
	t.Helper()
	qs := make([]bank.Question, n)
	for i := range qs {
		qs[i] = bank.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Text:         fmt.Sprintf("question %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	raw, err := json.Marshal(qs)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "bank.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestSessionService(t *testing.T, bankSize, questionCount int) (*SessionService, *fakeRedisServer) {
	t.Helper()
	f := startFakeRedis(t)
	rdb := redis.NewClient(&redis.Options{Addr: f.addr()})
	t.Cleanup(func() { rdb.Close() })

	b, err := bank.Load(writeTestBank(t, bankSize))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		TestName:      "mock",
		QuestionCount: questionCount,
		TestDuration:  time.Minute,
	}
	svc := NewSessionService(cfg, b, rdb, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc, f
}

func TestSubmitEnqueuesAfterClientDisconnect(t *testing.T) {
	svc, f := newTestSessionService(t, 5, 5)

	if _, err := svc.Start(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	// A client closing the connection right after the submit request cancels
	// the request context; the enqueue must survive that.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Submit(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}

	pushes := f.commandsNamed("RPUSH")
	if len(pushes) != 1 {
		t.Fatalf("got %d RPUSH commands, want 1", len(pushes))
	}
	if pushes[0][1] != config.WorkerKey.PersistResultsQueue {
		t.Fatalf("pushed to %q, want %q", pushes[0][1], config.WorkerKey.PersistResultsQueue)
	}

	var sawSaving bool
	for _, cmd := range f.commandsNamed("SET") {
		if cmd[1] == config.CacheKey.ResultStatusKey("u1") && cmd[2] == SaveStatusSaving {
			sawSaving = true
		}
	}
	if !sawSaving {
		t.Fatal("save status was not flagged as saving")
	}
}

func TestConcurrentStartsDrawDistinctOrders(t *testing.T) {
	svc, _ := newTestSessionService(t, 10, 10)

	st1, err := svc.Start(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	st2, err := svc.Start(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for i := range st1.Questions {
		if st1.Questions[i].ID != st2.Questions[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Fatal("two back-to-back starts drew the identical permutation")
	}
}
