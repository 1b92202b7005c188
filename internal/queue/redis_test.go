package queue

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"TrendPress/internal/domain"
)

// respServer is a scripted single-purpose Redis stand-in: it parses RESP
// command arrays, records each command name, and answers from the reply
// table (or a permissive default).
type respServer struct {
	ln      net.Listener
	mu      sync.Mutex
	seen    map[string]int
	replies map[string]string
}

func newRespServer(t *testing.T, replies map[string]string) *respServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &respServer{ln: ln, seen: make(map[string]int), replies: replies}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *respServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		header, err := r.ReadString('\n')
		if err != nil {
			return
		}
		header = strings.TrimSuffix(header, "\r\n")
		if !strings.HasPrefix(header, "*") {
			return
		}
		argc, err := strconv.Atoi(header[1:])
		if err != nil || argc < 1 {
			return
		}

		args := make([]string, 0, argc)
		for i := 0; i < argc; i++ {
			sizeLine, err := r.ReadString('\n')
			if err != nil {
				return
			}
			sizeLine = strings.TrimSuffix(sizeLine, "\r\n")
			if !strings.HasPrefix(sizeLine, "$") {
				return
			}
			size, err := strconv.Atoi(sizeLine[1:])
			if err != nil || size < 0 {
				return
			}
			buf := make([]byte, size+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				return
			}
			args = append(args, string(buf[:size]))
		}

		cmd := strings.ToUpper(args[0])
		s.mu.Lock()
		s.seen[cmd]++
		s.mu.Unlock()
		if _, err := conn.Write([]byte(s.replyFor(cmd))); err != nil {
			return
		}
	}
}

func (s *respServer) replyFor(cmd string) string {
	if reply, ok := s.replies[cmd]; ok {
		return reply
	}
	switch cmd {
	case "HELLO":
		// go-redis probes with HELLO on every new connection and only
		// falls back to RESP2 when the server answers with an error, so
		// mimic a pre-RESP3 server instead of the permissive default.
		return "-ERR unknown command 'HELLO'\r\n"
	case "SADD", "SREM":
		return ":1\r\n"
	default:
		return "+OK\r\n"
	}
}

func (s *respServer) count(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[cmd]
}

func (s *respServer) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       s.ln.Addr().String(),
		Protocol:   2,
		MaxRetries: -1,
	})
}

func redisTestJob(dedupeKey string) domain.Job {
	return domain.Job{
		ID:        "j-1",
		Type:      domain.JobSynthesize,
		DedupeKey: dedupeKey,
		Payload:   domain.SynthesizePayload{WorkspaceID: "ws-1", TopicID: "topic-1"},
	}
}

func TestRedisEnqueueFailureFreesDedupeKey(t *testing.T) {
	t.Parallel()

	srv := newRespServer(t, map[string]string{
		"LPUSH": "-ERR storage unavailable\r\n",
		"ZADD":  "-ERR storage unavailable\r\n",
	})
	client := srv.client()
	defer client.Close()
	q := NewRedisQueue(client, "trendpress")

	err := q.Enqueue(context.Background(), redisTestJob("synthesize:topic-1"))
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}

	if got := srv.count("SADD"); got != 1 {
		t.Fatalf("expected 1 reservation attempt, saw %d", got)
	}
	// The reservation must be released, or the next enqueue with this
	// key is dropped as a duplicate of a job that was never stored.
	if got := srv.count("SREM"); got != 1 {
		t.Fatalf("reservation not released after failed push, saw %d SREM", got)
	}
}

func TestRedisEnqueueDuplicateKeyDropped(t *testing.T) {
	t.Parallel()

	srv := newRespServer(t, map[string]string{"SADD": ":0\r\n"})
	client := srv.client()
	defer client.Close()
	q := NewRedisQueue(client, "trendpress")

	if err := q.Enqueue(context.Background(), redisTestJob("synthesize:topic-1")); err != nil {
		t.Fatalf("duplicate enqueue must be a silent no-op: %v", err)
	}
	if got := srv.count("LPUSH") + srv.count("ZADD"); got != 0 {
		t.Fatalf("duplicate job must not be stored, saw %d pushes", got)
	}
}
