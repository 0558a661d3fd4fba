package object

import (
	"encoding/binary"
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/pkg/errors"
)

// DefaultStreamNodeEntries is the maximum number of entries packed in a
// stream macro node.
const DefaultStreamNodeEntries = 100

var (
	ErrStreamIDTooSmall = errors.New("stream ID is equal or smaller than the top item")
	ErrGroupExists      = errors.New("consumer group already exists")
	ErrNoSuchGroup      = errors.New("no such consumer group")
)

type StreamID struct {
	Ms  uint64
	Seq uint64
}

func (id StreamID) Less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}
func (id StreamID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// key encodes id so that radix tree order matches ID order.
func (id StreamID) key() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], id.Ms)
	binary.BigEndian.PutUint64(buf[8:16], id.Seq)
	return buf
}

type StreamEntry struct {
	ID     StreamID
	Fields []string
}

type streamNode struct {
	entries []StreamEntry
}

// PendingEntry is a delivered but not yet acknowledged entry.
type PendingEntry struct {
	ID            StreamID
	Consumer      string
	DeliveryCount int
}

type ConsumerGroup struct {
	name      string
	lastID    StreamID
	pel       *iradix.Tree
	consumers map[string]int
}

func (g *ConsumerGroup) Name() string       { return g.name }
func (g *ConsumerGroup) LastID() StreamID   { return g.lastID }
func (g *ConsumerGroup) PendingCount() int  { return g.pel.Len() }
func (g *ConsumerGroup) ConsumerCount() int { return len(g.consumers) }

// Stream is an append-only log of entries. Entries are packed in macro nodes
// indexed by the ID of their first entry.
type Stream struct {
	nodes      *iradix.Tree
	tail       *streamNode
	nodeMax    int
	length     int
	lastID     StreamID
	groups     *iradix.Tree
	groupCount int
}

func NewStream(nodeMax int) *Stream {
	if nodeMax <= 0 {
		nodeMax = DefaultStreamNodeEntries
	}
	return &Stream{
		nodes:   iradix.New(),
		nodeMax: nodeMax,
		groups:  iradix.New(),
	}
}

func (s *Stream) Type() Type         { return TypeStream }
func (s *Stream) Encoding() Encoding { return EncodingStream }
func (s *Stream) Len() int           { return s.length }
func (s *Stream) LastID() StreamID   { return s.lastID }

// NodeCount returns the number of macro nodes in the entry index.
func (s *Stream) NodeCount() int { return s.nodes.Len() }

// GroupCount returns the number of consumer groups.
func (s *Stream) GroupCount() int { return s.groupCount }

// Add appends an entry. id must be greater than every ID already added.
func (s *Stream) Add(id StreamID, fields ...string) error {
	if s.length > 0 && !s.lastID.Less(id) {
		return errors.Wrapf(ErrStreamIDTooSmall, "adding %s after %s", id, s.lastID)
	}
	if s.tail == nil || len(s.tail.entries) >= s.nodeMax {
		s.tail = &streamNode{entries: make([]StreamEntry, 0, s.nodeMax)}
		s.nodes, _, _ = s.nodes.Insert(id.key(), s.tail)
	}
	s.tail.entries = append(s.tail.entries, StreamEntry{ID: id, Fields: fields})
	s.lastID = id
	s.length++
	return nil
}

// Range returns up to count entries whose ID is in [start, end]. A count of
// zero means no limit.
func (s *Stream) Range(start, end StreamID, count int) []StreamEntry {
	var out []StreamEntry
	s.nodes.Root().Walk(func(_ []byte, v interface{}) bool {
		for _, entry := range v.(*streamNode).entries {
			if entry.ID.Less(start) {
				continue
			}
			if end.Less(entry.ID) {
				return true
			}
			out = append(out, entry)
			if count > 0 && len(out) >= count {
				return true
			}
		}
		return false
	})
	return out
}

func (s *Stream) CreateGroup(name string, lastID StreamID) error {
	if _, ok := s.groups.Get([]byte(name)); ok {
		return errors.Wrap(ErrGroupExists, name)
	}
	s.groups, _, _ = s.groups.Insert([]byte(name), &ConsumerGroup{
		name:      name,
		lastID:    lastID,
		pel:       iradix.New(),
		consumers: map[string]int{},
	})
	s.groupCount++
	return nil
}

func (s *Stream) Group(name string) (*ConsumerGroup, bool) {
	v, ok := s.groups.Get([]byte(name))
	if !ok {
		return nil, false
	}
	return v.(*ConsumerGroup), true
}

// ReadGroup delivers up to count never delivered entries to consumer, and
// records them in the group pending entries list. A count of zero or less
// delivers every pending entry.
func (s *Stream) ReadGroup(group, consumer string, count int) ([]StreamEntry, error) {
	g, ok := s.Group(group)
	if !ok {
		return nil, errors.Wrap(ErrNoSuchGroup, group)
	}
	if count < 0 {
		count = 0
	}
	entries := s.Range(StreamID{Ms: g.lastID.Ms, Seq: g.lastID.Seq}, s.lastID, 0)
	out := make([]StreamEntry, 0, count)
	txn := g.pel.Txn()
	for _, entry := range entries {
		if !g.lastID.Less(entry.ID) {
			continue
		}
		if count > 0 && len(out) >= count {
			break
		}
		txn.Insert(entry.ID.key(), &PendingEntry{ID: entry.ID, Consumer: consumer, DeliveryCount: 1})
		g.consumers[consumer]++
		out = append(out, entry)
	}
	g.pel = txn.Commit()
	if len(out) > 0 {
		g.lastID = out[len(out)-1].ID
	}
	return out, nil
}

// Ack removes ids from the group pending entries list and returns how many
// were pending.
func (s *Stream) Ack(group string, ids ...StreamID) (int, error) {
	g, ok := s.Group(group)
	if !ok {
		return 0, errors.Wrap(ErrNoSuchGroup, group)
	}
	acked := 0
	for _, id := range ids {
		var old interface{}
		var deleted bool
		g.pel, old, deleted = g.pel.Delete(id.key())
		if !deleted {
			continue
		}
		consumer := old.(*PendingEntry).Consumer
		g.consumers[consumer]--
		acked++
	}
	return acked, nil
}

func (s *Stream) FreeEffort(string, int) uint64 {
	effort := uint64(s.nodes.Len())
	if s.groupCount > 0 {
		// The first group PEL size stands for every group, keeping the
		// estimate O(1).
		_, v, ok := s.groups.Root().Iterator().Next()
		g, _ := v.(*ConsumerGroup)
		if !ok || g == nil {
			panic("object: stream reports consumer groups but none can be iterated")
		}
		effort += uint64(s.groupCount) * (1 + uint64(g.pel.Len()))
	}
	return effort
}

func (s *Stream) release() {
	s.nodes.Root().Walk(func(_ []byte, v interface{}) bool {
		v.(*streamNode).entries = nil
		return false
	})
	s.groups.Root().Walk(func(_ []byte, v interface{}) bool {
		g := v.(*ConsumerGroup)
		g.pel = nil
		g.consumers = nil
		return false
	})
	s.nodes = nil
	s.groups = nil
	s.tail = nil
	s.length = 0
	s.groupCount = 0
}
