package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/skylink/cli/config"
	"github.com/justapithecus/skylink/cli/reader"
	"github.com/justapithecus/skylink/ftpserver"
	"github.com/justapithecus/skylink/ipc"
	"github.com/justapithecus/skylink/link"
	"github.com/justapithecus/skylink/log"
	"github.com/justapithecus/skylink/wire"
)

// groundStation is the address ls and crc send from.
var groundStation = wire.Address{SystemID: 255, ComponentID: 190}

// Client defaults.
const (
	defaultRequestTimeout = time.Second
	defaultRequestRetries = 2
)

// clientFlags select the engine ls and crc talk to: a remote engine over
// UDP, or an in-process engine serving --root.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.PathFlag{
			Name:  "root",
			Usage: "Serve this directory in-process instead of contacting a remote engine",
		},
		&cli.StringFlag{
			Name:  "remote",
			Usage: "UDP address of a running engine (host:port)",
		},
		&cli.UintFlag{
			Name:  "target-system",
			Usage: "Engine system id (0 = any)",
		},
		&cli.UintFlag{
			Name:  "target-component",
			Usage: "Engine component id (0 = any)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request reply timeout",
			Value: defaultRequestTimeout,
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Resend a request this many times when no reply arrives",
			Value: defaultRequestRetries,
		},
	}
}

// engineClient sends requests to one engine and waits for the matching replies.
// Not safe for concurrent use.
type engineClient struct {
	conn    link.Conn
	self    wire.Address
	target  wire.Address
	timeout time.Duration
	retries int
	seq     uint16
}

// do sends req and returns the reply. A request that times out is resent
// with the same sequence number up to retries times.
func (e *engineClient) do(ctx context.Context, req wire.Payload) (wire.Payload, error) {
	e.seq++
	req.Seq = e.seq
	msg := wire.NewMessage(e.self, e.target, &req)

	for attempt := 0; ; attempt++ {
		if err := e.conn.WriteMessage(msg); err != nil {
			return wire.Payload{}, fmt.Errorf("send %s: %w", req.Opcode, err)
		}
		rsp, err := e.await(ctx, &req)
		if err == nil {
			return rsp, nil
		}
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || attempt >= e.retries {
			return wire.Payload{}, fmt.Errorf("%s: %w", req.Opcode, err)
		}
	}
}

// await reads until the reply to req arrives. Replies to other requests and
// undecodable frames are skipped.
func (e *engineClient) await(ctx context.Context, req *wire.Payload) (wire.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	for {
		msg, err := e.conn.ReadMessage(ctx)
		if err != nil {
			var fe *ipc.FrameError
			if errors.As(err, &fe) && !fe.IsFatal() {
				continue
			}
			return wire.Payload{}, err
		}
		if msg.MsgID != wire.MsgIDFileTransfer {
			continue
		}
		rsp, err := msg.Decode()
		if err != nil {
			continue
		}
		if rsp.Seq != req.Seq+1 || rsp.ReqOpcode != req.Opcode {
			continue
		}
		return rsp, nil
	}
}

// replyError returns nil for an ACK and the carried result for a NAK.
func replyError(rsp *wire.Payload) error {
	if rsp.Opcode == wire.RspAck {
		return nil
	}
	data := rsp.Bytes()
	if len(data) == 0 {
		return wire.ErrFail
	}
	result := wire.Result(data[0])
	if result == wire.ErrFailErrno && len(data) > 1 {
		return fmt.Errorf("%w (errno %d)", result, data[1])
	}
	return result
}

func pathPayload(op wire.Opcode, path string, offset uint32) (wire.Payload, error) {
	if len(path) > wire.MaxDataLength {
		return wire.Payload{}, fmt.Errorf("path is %d bytes, limit is %d", len(path), wire.MaxDataLength)
	}
	req := wire.Payload{Opcode: op, Offset: offset}
	req.SetBytes([]byte(path))
	return req, nil
}

// list pages through a directory listing until the engine reports EOF.
//
// The engine counts skipped entries (sockets, devices) toward the offset,
// so a page may repeat entries already received, and may hold nothing
// but repeats. Repeats are dropped; only EOF ends the listing.
func (e *engineClient) list(ctx context.Context, path string) ([]reader.DirEntry, error) {
	var (
		entries []reader.DirEntry
		seen    = make(map[string]bool)
		offset  uint32
	)
	for {
		req, err := pathPayload(wire.CmdListDirectory, path, offset)
		if err != nil {
			return nil, err
		}
		rsp, err := e.do(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := replyError(&rsp); err != nil {
			if errors.Is(err, wire.ErrEOF) {
				return entries, nil
			}
			return nil, err
		}

		page, err := reader.ParseDirEntries(rsp.Bytes())
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("list %q: empty page at offset %d", path, offset)
		}
		for _, entry := range page {
			if seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true
			entries = append(entries, entry)
		}
		offset += uint32(len(page))
	}
}

// crc32 asks the engine for the CRC-32 of a file.
func (e *engineClient) crc32(ctx context.Context, path string) (uint32, error) {
	req, err := pathPayload(wire.CmdCalcFileCRC32, path, 0)
	if err != nil {
		return 0, err
	}
	rsp, err := e.do(ctx, req)
	if err != nil {
		return 0, err
	}
	if err := replyError(&rsp); err != nil {
		return 0, err
	}
	data := rsp.Bytes()
	if len(data) < 4 {
		return 0, fmt.Errorf("crc reply carries %d bytes, want 4", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// openClient connects to the engine selected by clientFlags. The returned
// func releases the connection and any in-process engine.
func openClient(c *cli.Context) (*engineClient, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	sys, err := uint8Flag(c, "target-system")
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitFailure)
	}
	comp, err := uint8Flag(c, "target-component")
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitFailure)
	}
	retries := c.Int("retries")
	if retries < 0 {
		return nil, nil, cli.Exit("--retries must be >= 0", exitFailure)
	}
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	if remote := c.String("remote"); remote != "" {
		conn, err := link.ListenUDP(":0", remote)
		if err != nil {
			return nil, nil, cli.Exit(fmt.Sprintf("open link: %v", err), exitLinkFailure)
		}
		client := &engineClient{
			conn:    conn,
			self:    groundStation,
			target:  wire.Address{SystemID: sys, ComponentID: comp},
			timeout: timeout,
			retries: retries,
		}
		return client, func() { _ = conn.Close() }, nil
	}

	root := cfg.RootDir
	if c.IsSet("root") {
		root = c.Path("root")
	}
	if root == "" {
		return nil, nil, cli.Exit("either --remote or --root (or root_dir in config) is required", exitFailure)
	}
	client, closeFn, err := startLocalEngine(root, cfg.AliasList(), timeout)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), exitFailure)
	}
	return client, closeFn, nil
}

// startLocalEngine runs an engine for root on an in-memory link and
// returns a client connected to it.
func startLocalEngine(root string, aliases []config.Alias, timeout time.Duration) (*engineClient, func(), error) {
	engineAddr := wire.Address{SystemID: defaultSystemID, ComponentID: defaultComponentID}
	engineEnd, clientEnd := link.Pipe()

	router := link.NewRouter(engineEnd, log.Nop(), nil)
	srv := ftpserver.New(engineAddr, router)
	if err := configureEngine(srv, root, aliases); err != nil {
		_ = srv.Close()
		_ = engineEnd.Close()
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() { _ = router.Serve(ctx, srv) })

	closeFn := func() {
		cancel()
		wg.Wait()
		_ = clientEnd.Close()
		_ = srv.Close()
	}
	return &engineClient{
		conn:    clientEnd,
		self:    groundStation,
		target:  srv.Self(),
		timeout: timeout,
	}, closeFn, nil
}
