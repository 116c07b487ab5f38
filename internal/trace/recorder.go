package trace

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"ddscore/internal/ddsid"
)

var tagCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// DiscoveryEvent captures one SPDP/SEDP state transition: a participant,
// topic, publication or subscription appearing, refreshing, or going stale.
type DiscoveryEvent struct {
	CapturedAt time.Time       `json:"captured_at"`
	Kind       string          `json:"kind"`
	Subject    string          `json:"subject"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}

// WireDirection distinguishes inbound from outbound submessage captures.
type WireDirection string

const (
	DirectionRX WireDirection = "rx"
	DirectionTX WireDirection = "tx"
)

// WireCapture records a single RTPS submessage crossing the wire, keyed by
// the entity and sequence number it concerns so a player can reconstruct
// per-endpoint histories without decoding the full CDR payload.
type WireCapture struct {
	CapturedAt time.Time            `json:"captured_at"`
	Direction  WireDirection        `json:"direction"`
	Entity     ddsid.GUID           `json:"entity"`
	SeqNum     ddsid.SequenceNumber `json:"seq_num"`
	Payload    []byte               `json:"payload"`
}

// Stats summarises what a Recorder currently holds buffered and on disk.
type Stats struct {
	DiscoveryEvents int64
	WireCaptures    int64
	Bytes           int64
	Rolls           int64
	LastRoll        time.Time
	LastRollPath    string
}

// Recorder buffers discovery and wire events in memory and periodically
// rolls them to a compressed on-disk bundle, mirroring the teacher's
// Recorder/Roll split between cheap in-process buffering and expensive I/O.
type Recorder struct {
	mu  sync.Mutex
	dir string
	now func() time.Time

	discovery []DiscoveryEvent
	wire      []WireCapture

	bytes        int64
	rolls        int64
	lastRoll     time.Time
	lastRollPath string
}

// NewRecorder constructs a Recorder writing bundles under dir. A nil clock
// defaults to time.Now.
func NewRecorder(dir string, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{dir: dir, now: clock}
}

// RecordDiscovery buffers a discovery-state transition. detail is marshaled
// to JSON and stored verbatim; a marshal failure drops the detail field
// rather than the whole event.
func (r *Recorder) RecordDiscovery(kind, subject string, detail any) {
	if r == nil {
		return
	}
	var raw json.RawMessage
	if detail != nil {
		if data, err := json.Marshal(detail); err == nil {
			raw = data
		}
	}
	event := DiscoveryEvent{CapturedAt: r.now().UTC(), Kind: kind, Subject: subject, Detail: raw}
	r.mu.Lock()
	r.discovery = append(r.discovery, event)
	r.bytes += int64(len(event.Subject) + len(event.Kind) + len(raw))
	r.mu.Unlock()
}

// RecordWire buffers a single submessage observation. payload is cloned so
// the caller's buffer can be reused immediately.
func (r *Recorder) RecordWire(direction WireDirection, entity ddsid.GUID, seq ddsid.SequenceNumber, payload []byte) {
	if r == nil {
		return
	}
	clone := append([]byte(nil), payload...)
	capture := WireCapture{CapturedAt: r.now().UTC(), Direction: direction, Entity: entity, SeqNum: seq, Payload: clone}
	r.mu.Lock()
	r.wire = append(r.wire, capture)
	r.bytes += int64(len(clone))
	r.mu.Unlock()
}

// envelope is the on-disk JSON shape written inside the gzip stream.
type envelope struct {
	Discovery []DiscoveryEvent `json:"discovery"`
	Wire      []WireCapture    `json:"wire"`
}

// Roll persists everything buffered so far to a new compressed file under
// dir, names it from domainTag plus the current timestamp, writes a Header
// pointing at it, and resets the in-memory buffers.
func (r *Recorder) Roll(domainTag string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("recorder not initialised")
	}
	if r.dir == "" {
		return "", fmt.Errorf("trace directory must be configured")
	}

	r.mu.Lock()
	env := envelope{Discovery: r.discovery, Wire: r.wire}
	r.discovery = nil
	r.wire = nil
	r.mu.Unlock()

	cleaned := tagCleaner.ReplaceAllString(domainTag, "")
	if cleaned == "" {
		cleaned = "domain"
	}
	created := r.now().UTC()
	name := fmt.Sprintf("%s-%s.trace.json.gz", cleaned, created.Format("20060102T150405Z"))

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	gz := gzip.NewWriter(file)
	encodeErr := json.NewEncoder(gz).Encode(env)
	closeErr := gz.Close()
	fileCloseErr := file.Close()
	if encodeErr != nil {
		return "", encodeErr
	}
	if closeErr != nil {
		return "", closeErr
	}
	if fileCloseErr != nil {
		return "", fileCloseErr
	}

	headerPath := filepath.Join(r.dir, cleaned+".header.json")
	header := Header{SchemaVersion: HeaderSchemaVersion, DomainTag: domainTag, FilePointer: name}
	if err := WriteHeader(headerPath, header); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.rolls++
	r.lastRoll = created
	r.lastRollPath = path
	r.mu.Unlock()

	return path, nil
}

// Snapshot reports the Recorder's current buffered/rolled state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		DiscoveryEvents: int64(len(r.discovery)),
		WireCaptures:    int64(len(r.wire)),
		Bytes:           r.bytes,
		Rolls:           r.rolls,
		LastRoll:        r.lastRoll,
		LastRollPath:    r.lastRollPath,
	}
}
