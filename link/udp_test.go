package link

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/justapithecus/skylink/ipc"
	"github.com/justapithecus/skylink/wire"
)

func dialUDP(t *testing.T, addr net.Addr) *net.UDPConn {
	t.Helper()
	c, err := net.DialUDP("udp", nil, addr.(*net.UDPAddr))
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUDP_RepliesToLastPeer(t *testing.T) {
	u, err := ListenUDP("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer u.Close()

	if err := u.WriteMessage(testMessage(1)); !errors.Is(err, ErrNoPeer) {
		t.Fatalf("write before any peer = %v, want ErrNoPeer", err)
	}

	client := dialUDP(t, u.LocalAddr())
	req := testMessage(9)
	b, err := wire.MarshalMessage(&req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Write(b); err != nil {
		t.Fatal(err)
	}

	msg, err := u.ReadMessage(context.Background())
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if p, _ := msg.Decode(); p.Seq != 9 {
		t.Errorf("seq = %d, want 9", p.Seq)
	}
	if u.Peer() == nil || u.Peer().Port != client.LocalAddr().(*net.UDPAddr).Port {
		t.Fatalf("peer = %v, want %v", u.Peer(), client.LocalAddr())
	}

	if err := u.WriteMessage(testMessage(10)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, maxDatagram)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	reply, err := ipc.DecodeMessage(buf[:n])
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if p, _ := reply.Decode(); p.Seq != 10 {
		t.Errorf("reply seq = %d, want 10", p.Seq)
	}
}

func TestUDP_FixedRemote(t *testing.T) {
	remote, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	u, err := ListenUDP("127.0.0.1:0", remote.LocalAddr().String())
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer u.Close()

	other := dialUDP(t, u.LocalAddr())
	req := testMessage(1)
	b, _ := wire.MarshalMessage(&req)
	if _, err := other.Write(b); err != nil {
		t.Fatal(err)
	}
	if _, err := u.ReadMessage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := u.Peer().String(); got != remote.LocalAddr().String() {
		t.Errorf("peer = %s, want fixed remote %s", got, remote.LocalAddr())
	}
}

func TestUDP_DecodeError(t *testing.T) {
	u, err := ListenUDP("127.0.0.1:0", "")
	if err != nil {
		t.Fatal(err)
	}
	defer u.Close()

	client := dialUDP(t, u.LocalAddr())
	if _, err := client.Write([]byte{0xc1}); err != nil {
		t.Fatal(err)
	}
	_, err = u.ReadMessage(context.Background())
	var frameErr *ipc.FrameError
	if !errors.As(err, &frameErr) || frameErr.IsFatal() {
		t.Fatalf("error = %v, want non-fatal FrameError", err)
	}
}

func TestUDP_CloseUnblocksRead(t *testing.T) {
	u, err := ListenUDP("127.0.0.1:0", "")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := u.ReadMessage(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("read error = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return after Close")
	}
	if err := u.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestUDP_ReadDeadline(t *testing.T) {
	u, err := ListenUDP("127.0.0.1:0", "")
	if err != nil {
		t.Fatal(err)
	}
	defer u.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := u.ReadMessage(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
}
