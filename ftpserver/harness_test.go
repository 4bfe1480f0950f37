package ftpserver

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/skylink/metrics"
	"github.com/justapithecus/skylink/types"
	"github.com/justapithecus/skylink/wire"
)

var (
	testSelf = wire.Address{SystemID: 1, ComponentID: 1}
	testPeer = wire.Address{SystemID: 255, ComponentID: 190}
)

// recordingSender captures replies. Burst packets block on gate when it is
// set, signalling entered (if set) as each one arrives there.
type recordingSender struct {
	mu      sync.Mutex
	msgs    []wire.Message
	gate    chan struct{}
	entered chan struct{}
}

func (r *recordingSender) Send(msg wire.Message) error {
	if r.gate != nil {
		p, _ := msg.Decode()
		if p.ReqOpcode == wire.CmdBurstReadFile {
			if r.entered != nil {
				select {
				case r.entered <- struct{}{}:
				default:
				}
			}
			<-r.gate
		}
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// since returns decoded payloads sent after the first n messages.
func (r *recordingSender) since(t *testing.T, n int) []wire.Payload {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []wire.Payload
	for _, msg := range r.msgs[n:] {
		if msg.TargetSystem != testPeer.SystemID || msg.TargetComponent != testPeer.ComponentID {
			t.Errorf("reply target = %d/%d, want %v", msg.TargetSystem, msg.TargetComponent, testPeer)
		}
		if msg.Sender != testSelf {
			t.Errorf("reply sender = %v, want %v", msg.Sender, testSelf)
		}
		p, err := msg.Decode()
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		out = append(out, p)
	}
	return out
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*types.TransferEvent
}

func (r *eventRecorder) Record(e *types.TransferEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []*types.TransferEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.TransferEvent(nil), r.events...)
}

type harness struct {
	t       *testing.T
	srv     *Server
	out     *recordingSender
	events  *eventRecorder
	metrics *metrics.Collector
	root    string
	seq     uint16
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		out:     &recordingSender{},
		events:  &eventRecorder{},
		metrics: metrics.NewCollector(testSelf.String(), "test", ""),
	}
	h.srv = New(testSelf, h.out,
		WithEventSink(h.events),
		WithMetrics(h.metrics),
		WithTempDir(t.TempDir()),
	)
	if err := h.srv.SetRootDirectory(t.TempDir()); err != nil {
		t.Fatalf("SetRootDirectory failed: %v", err)
	}
	h.root = h.srv.RootDirectory()
	t.Cleanup(func() { _ = h.srv.Close() })
	return h
}

// send delivers req and returns every reply produced synchronously.
func (h *harness) send(req wire.Payload) []wire.Payload {
	h.t.Helper()
	before := h.out.count()
	msg := wire.NewMessage(testPeer, testSelf, &req)
	h.srv.HandleMessage(msg)
	return h.out.since(h.t, before)
}

// do sends a request and returns its single reply.
func (h *harness) do(op wire.Opcode, offset uint32, data []byte) wire.Payload {
	h.t.Helper()
	h.seq += 2
	req := wire.Payload{Seq: h.seq, Opcode: op, Offset: offset}
	req.SetBytes(data)

	replies := h.send(req)
	if len(replies) != 1 {
		h.t.Fatalf("%v: got %d replies, want 1", op, len(replies))
	}
	rsp := replies[0]
	if rsp.Seq != req.Seq+1 {
		h.t.Errorf("%v: reply seq = %d, want %d", op, rsp.Seq, req.Seq+1)
	}
	if rsp.ReqOpcode != op {
		h.t.Errorf("%v: reply req_opcode = %v, want %v", op, rsp.ReqOpcode, op)
	}
	if rsp.Session != 0 {
		h.t.Errorf("%v: reply session = %d, want 0", op, rsp.Session)
	}
	return rsp
}

func (h *harness) path(op wire.Opcode, path string) wire.Payload {
	h.t.Helper()
	return h.do(op, 0, []byte(path))
}

func (h *harness) writeFile(name string, content []byte) string {
	h.t.Helper()
	p := filepath.Join(h.root, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		h.t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		h.t.Fatalf("WriteFile failed: %v", err)
	}
	return p
}

// waitBurst waits for the current burst worker, if any, to exit.
func (h *harness) waitBurst() {
	h.t.Helper()
	h.srv.reqMu.Lock()
	w := h.srv.burst
	h.srv.reqMu.Unlock()
	if w == nil {
		return
	}
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		h.t.Fatal("burst worker did not finish")
	}
}

func expectAck(t *testing.T, rsp wire.Payload) {
	t.Helper()
	if rsp.Opcode != wire.RspAck {
		t.Fatalf("opcode = %v (%v), want ack", rsp.Opcode, wire.Result(rsp.Data[0]))
	}
}

func expectNak(t *testing.T, rsp wire.Payload, want wire.Result) {
	t.Helper()
	if rsp.Opcode != wire.RspNak {
		t.Fatalf("opcode = %v, want nak %v", rsp.Opcode, want)
	}
	if got := wire.Result(rsp.Data[0]); got != want {
		t.Errorf("nak result = %v, want %v", got, want)
	}
}

func le32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
