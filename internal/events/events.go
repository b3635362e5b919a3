// Package events implements spec §6's subscribe_events() egress: an
// append-only stream of {block_appended, reorg, contract_state_changed}
// fanned out to every registered subscriber. Adapted from the teacher's
// foundation/events/events.go, which fans out a bare string per
// subscriber channel for its websocket handler; this chain fans out a
// typed, JSON-encoded Event so a subscriber can distinguish kinds without
// parsing log text.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Kind is one of the three event kinds spec §6 names.
type Kind string

const (
	KindBlockAppended        Kind = "block_appended"
	KindReorg                Kind = "reorg"
	KindContractStateChanged Kind = "contract_state_changed"
)

// Event is one entry in the subscribe_events() stream.
type Event struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data"`
}

// BlockAppendedData is KindBlockAppended's payload.
type BlockAppendedData struct {
	BlockHash string `json:"block_hash"`
	Height    uint64 `json:"height"`
	TxCount   int    `json:"tx_count"`
}

// ReorgData is KindReorg's payload.
type ReorgData struct {
	OldTipHash    string `json:"old_tip_hash"`
	NewTipHash    string `json:"new_tip_hash"`
	ForkHeight    uint64 `json:"fork_height"`
	DisconnectedN int    `json:"disconnected_count"`
	ConnectedN    int    `json:"connected_count"`
}

// ContractStateChangedData is KindContractStateChanged's payload.
type ContractStateChangedData struct {
	ContractID string `json:"contract_id"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
}

// messageBuffer is the per-subscriber channel depth. A websocket send can
// take long; this gives a slow receiver room to catch up before Send
// starts dropping for it, mirroring the teacher's own sizing rationale.
const messageBuffer = 100

// Events maintains a mapping of subscriber id to channel, matching the
// teacher's Events type one-for-one in shape.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an Events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes and removes every channel handed out by Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique subscriber id and returns the channel it should
// read from; calling Acquire again with the same id returns the same
// channel.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	evt.m[id] = make(chan string, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel handed out for id.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Publish JSON-encodes ev and signals it to every registered subscriber.
// Publish never blocks: a subscriber whose channel is full misses the
// event rather than stalling the publisher, the same non-blocking
// guarantee the teacher's Send makes.
func (evt *Events) Publish(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}

	evt.mu.RLock()
	defer evt.mu.RUnlock()

	msg := string(b)
	for _, ch := range evt.m {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// PublishBlockAppended is a typed convenience wrapper around Publish.
func (evt *Events) PublishBlockAppended(d BlockAppendedData) {
	_ = evt.Publish(Event{Kind: KindBlockAppended, Data: d})
}

// PublishReorg is a typed convenience wrapper around Publish.
func (evt *Events) PublishReorg(d ReorgData) {
	_ = evt.Publish(Event{Kind: KindReorg, Data: d})
}

// PublishContractStateChanged is a typed convenience wrapper around Publish.
func (evt *Events) PublishContractStateChanged(d ContractStateChangedData) {
	_ = evt.Publish(Event{Kind: KindContractStateChanged, Data: d})
}
