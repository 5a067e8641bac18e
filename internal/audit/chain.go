package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// Chain is an append-only, in-memory hash-chained audit log for a single
// session. Safe for concurrent use.
type Chain struct {
	mu        sync.Mutex
	sessionID string
	records   []Record
	sink      io.Writer
}

// NewChain constructs an empty chain for sessionID. sink, if non-nil,
// receives each appended record as a newline-delimited JSON line — a
// durable mirror a caller can point at a log file or pipe.
func NewChain(sessionID string, sink io.Writer) *Chain {
	return &Chain{sessionID: sessionID, sink: sink}
}

// Append adds a new record for eventType/detail, chaining it to the prior
// record's hash, and returns the appended record.
func (c *Chain) Append(eventType EventType, detail map[string]interface{}) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash := genesisHash
	if n := len(c.records); n > 0 {
		prevHash = c.records[n-1].Hash
	}

	record := Record{
		Timestamp: time.Now(),
		SessionID: c.sessionID,
		EventType: eventType,
		Detail:    detail,
		PrevHash:  prevHash,
	}
	hash, err := computeHash(record)
	if err != nil {
		return Record{}, err
	}
	record.Hash = hash

	c.records = append(c.records, record)
	if c.sink != nil {
		if err := c.writeRecord(record); err != nil {
			return record, err
		}
	}
	return record, nil
}

func (c *Chain) writeRecord(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return crypterrors.Wrap(crypterrors.Internal, "marshal audit record for sink", err)
	}
	line = append(line, '\n')
	if _, err := c.sink.Write(line); err != nil {
		return crypterrors.Wrap(crypterrors.Io, "write audit record to sink", err)
	}
	return nil
}

// Records returns a copy of every record appended so far, in order.
func (c *Chain) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Verify walks the chain and confirms every record's Hash matches
// recomputing it from its own fields and that PrevHash correctly names the
// preceding record's Hash. Returns the index of the first broken link, or
// -1 if the chain is intact.
func (c *Chain) Verify() (brokenAt int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expectedPrev := genesisHash
	for i, record := range c.records {
		if record.PrevHash != expectedPrev {
			return i, nil
		}
		recomputed, err := computeHash(record)
		if err != nil {
			return i, err
		}
		if recomputed != record.Hash {
			return i, nil
		}
		expectedPrev = record.Hash
	}
	return -1, nil
}
