// Package metrics provides engine and link counters.
//
// The Collector accumulates counters for the lifetime of a serve process.
// It is a leaf package with no internal dependencies: opcodes and result
// codes are recorded by their string names.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Link
	FramesReceived   int64 `json:"frames_received"`
	FramesIgnored    int64 `json:"frames_ignored"`
	FramesOversize   int64 `json:"frames_oversize"`
	LinkDecodeErrors int64 `json:"link_decode_errors"`
	SendErrors       int64 `json:"send_errors"`

	// Requests and replies
	Requests        map[string]int64 `json:"requests"`
	Acks            int64            `json:"acks"`
	Naks            int64            `json:"naks"`
	NaksByResult    map[string]int64 `json:"naks_by_result"`
	BytesRead       int64            `json:"bytes_read"`
	BytesWritten    int64            `json:"bytes_written"`
	SessionsOpened  int64            `json:"sessions_opened"`
	SessionsClosed  int64            `json:"sessions_closed"`
	BurstsStarted   int64            `json:"bursts_started"`
	BurstsCompleted int64            `json:"bursts_completed"`
	BurstsCancelled int64            `json:"bursts_cancelled"`
	BurstPackets    int64            `json:"burst_packets"`

	// Transfer events
	EventsRecorded      int64 `json:"events_recorded"`
	EventsDropped       int64 `json:"events_dropped"`
	JournalWriteSuccess int64 `json:"journal_write_success"`
	JournalWriteFailure int64 `json:"journal_write_failure"`
	PublishSuccess      int64 `json:"publish_success"`
	PublishFailure      int64 `json:"publish_failure"`

	// Dimensions (informational, set at construction)
	Identity       string `json:"identity"`
	Transport      string `json:"transport"`
	JournalBackend string `json:"journal_backend"`
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesReceived   int64
	framesIgnored    int64
	framesOversize   int64
	linkDecodeErrors int64
	sendErrors       int64

	requests        map[string]int64
	acks            int64
	naks            int64
	naksByResult    map[string]int64
	bytesRead       int64
	bytesWritten    int64
	sessionsOpened  int64
	sessionsClosed  int64
	burstsStarted   int64
	burstsCompleted int64
	burstsCancelled int64
	burstPackets    int64

	eventsRecorded      int64
	eventsDropped       int64
	journalWriteSuccess int64
	journalWriteFailure int64
	publishSuccess      int64
	publishFailure      int64

	identity       string
	transport      string
	journalBackend string
}

// NewCollector creates a Collector with dimension labels.
// identity is the engine's "sysid/compid"; transport and journalBackend may be empty.
func NewCollector(identity, transport, journalBackend string) *Collector {
	return &Collector{
		requests:       make(map[string]int64),
		naksByResult:   make(map[string]int64),
		identity:       identity,
		transport:      transport,
		journalBackend: journalBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Link ---

// IncFrameReceived records an inbound file-transfer message.
func (c *Collector) IncFrameReceived() {
	if c == nil {
		return
	}
	c.add(&c.framesReceived, 1)
}

// IncFrameIgnored records a message addressed to another system or component.
func (c *Collector) IncFrameIgnored() {
	if c == nil {
		return
	}
	c.add(&c.framesIgnored, 1)
}

// IncFrameOversize records a request whose size field exceeded the data capacity.
func (c *Collector) IncFrameOversize() {
	if c == nil {
		return
	}
	c.add(&c.framesOversize, 1)
}

// IncLinkDecodeError records a link message that could not be decoded.
func (c *Collector) IncLinkDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.linkDecodeErrors, 1)
}

// IncSendError records a reply the transport failed to send.
func (c *Collector) IncSendError() {
	if c == nil {
		return
	}
	c.add(&c.sendErrors, 1)
}

// --- Requests and replies ---

// IncRequest records a dispatched request by opcode name.
func (c *Collector) IncRequest(opcode string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.requests[opcode]++
	c.mu.Unlock()
}

// IncAck records an ACK sent, including burst packets.
func (c *Collector) IncAck() {
	if c == nil {
		return
	}
	c.add(&c.acks, 1)
}

// IncNak records a NAK sent with the given result name.
func (c *Collector) IncNak(result string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.naks++
	c.naksByResult[result]++
	c.mu.Unlock()
}

// AddBytesRead records bytes served by read or burst requests.
func (c *Collector) AddBytesRead(n int64) {
	if c == nil {
		return
	}
	c.add(&c.bytesRead, n)
}

// AddBytesWritten records bytes stored by write requests.
func (c *Collector) AddBytesWritten(n int64) {
	if c == nil {
		return
	}
	c.add(&c.bytesWritten, n)
}

// IncSessionOpened records a file session opened.
func (c *Collector) IncSessionOpened() {
	if c == nil {
		return
	}
	c.add(&c.sessionsOpened, 1)
}

// IncSessionClosed records a file session torn down.
func (c *Collector) IncSessionClosed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsClosed, 1)
}

// IncBurstStarted records a burst worker start.
func (c *Collector) IncBurstStarted() {
	if c == nil {
		return
	}
	c.add(&c.burstsStarted, 1)
}

// IncBurstCompleted records a burst that reached end of file.
func (c *Collector) IncBurstCompleted() {
	if c == nil {
		return
	}
	c.add(&c.burstsCompleted, 1)
}

// IncBurstCancelled records a burst stopped before end of file.
func (c *Collector) IncBurstCancelled() {
	if c == nil {
		return
	}
	c.add(&c.burstsCancelled, 1)
}

// IncBurstPacket records one burst data packet sent.
func (c *Collector) IncBurstPacket() {
	if c == nil {
		return
	}
	c.add(&c.burstPackets, 1)
}

// --- Transfer events ---
// Journal counters are per-call, not per-record. A single batch write
// of N events counts as 1 success.

// IncEventRecorded records a transfer event accepted by the pump.
func (c *Collector) IncEventRecorded() {
	if c == nil {
		return
	}
	c.add(&c.eventsRecorded, 1)
}

// IncEventDropped records a transfer event dropped because the pump was full.
func (c *Collector) IncEventDropped() {
	if c == nil {
		return
	}
	c.add(&c.eventsDropped, 1)
}

// IncJournalWriteSuccess records a successful journal batch write.
func (c *Collector) IncJournalWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.journalWriteSuccess, 1)
}

// IncJournalWriteFailure records a failed journal batch write.
func (c *Collector) IncJournalWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.journalWriteFailure, 1)
}

// IncPublishSuccess records an event delivered to an adapter.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess, 1)
}

// IncPublishFailure records an adapter delivery failure after retries.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FramesReceived:   c.framesReceived,
		FramesIgnored:    c.framesIgnored,
		FramesOversize:   c.framesOversize,
		LinkDecodeErrors: c.linkDecodeErrors,
		SendErrors:       c.sendErrors,

		Requests:        copyCounts(c.requests),
		Acks:            c.acks,
		Naks:            c.naks,
		NaksByResult:    copyCounts(c.naksByResult),
		BytesRead:       c.bytesRead,
		BytesWritten:    c.bytesWritten,
		SessionsOpened:  c.sessionsOpened,
		SessionsClosed:  c.sessionsClosed,
		BurstsStarted:   c.burstsStarted,
		BurstsCompleted: c.burstsCompleted,
		BurstsCancelled: c.burstsCancelled,
		BurstPackets:    c.burstPackets,

		EventsRecorded:      c.eventsRecorded,
		EventsDropped:       c.eventsDropped,
		JournalWriteSuccess: c.journalWriteSuccess,
		JournalWriteFailure: c.journalWriteFailure,
		PublishSuccess:      c.publishSuccess,
		PublishFailure:      c.publishFailure,

		Identity:       c.identity,
		Transport:      c.transport,
		JournalBackend: c.journalBackend,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
