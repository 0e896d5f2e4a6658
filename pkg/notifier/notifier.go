// Package notifier implements the local node's publish/subscribe channel for
// chain lifecycle events, so a ChainClient's listen() call can stream
// notifications instead of polling.
package notifier

import (
	"log"
	"sync"

	"github.com/linera-io/linera-chainclient/pkg/types"
)

// Reason distinguishes the three events a subscriber can receive.
type Reason string

const (
	ReasonNewBlock            Reason = "new_block"
	ReasonNewIncomingMessage  Reason = "new_incoming_message"
	ReasonNewRound            Reason = "new_round"
)

// Notification is a single lifecycle event for a chain. Only the fields
// relevant to Reason are populated.
type Notification struct {
	ChainID types.ChainID
	Reason  Reason

	// NewBlock
	Height types.BlockHeight
	Hash   types.Hash

	// NewIncomingMessage
	Origin types.ChainID

	// NewRound
	Round types.RoundNumber
}

// subscriberBuffer bounds how many unconsumed notifications a slow listener
// can accumulate before new ones are dropped for it. A chain under load
// should not let one stalled listener grow without bound.
const subscriberBuffer = 64

// Notifier fans out notifications to per-chain subscribers. The local node
// holds one Notifier and calls Publish after every persisted state change;
// ChainClient.listen subscribes to receive its own chain's events.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[types.ChainID]map[int]chan Notification
	nextID      int
	logger      *log.Logger
}

func New() *Notifier {
	return &Notifier{
		subscribers: make(map[types.ChainID]map[int]chan Notification),
		logger:      log.New(log.Writer(), "[notifier] ", log.LstdFlags),
	}
}

// Subscribe registers a new listener for chainID and returns a channel of
// notifications plus an unsubscribe function. The channel is closed when
// Unsubscribe is called.
func (n *Notifier) Subscribe(chainID types.ChainID) (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscribers[chainID] == nil {
		n.subscribers[chainID] = make(map[int]chan Notification)
	}
	id := n.nextID
	n.nextID++
	ch := make(chan Notification, subscriberBuffer)
	n.subscribers[chainID][id] = ch

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subscribers[chainID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(n.subscribers, chainID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers a notification to every current subscriber of its chain.
// A subscriber whose buffer is full has the notification dropped for it
// rather than blocking the publisher; listen() callers that need a gapless
// stream should drain promptly.
func (n *Notifier) Publish(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subscribers[note.ChainID] {
		select {
		case ch <- note:
		default:
			n.logger.Printf("dropping notification for chain %s: subscriber buffer full", note.ChainID)
		}
	}
}

func NewBlock(chainID types.ChainID, height types.BlockHeight, hash types.Hash) Notification {
	return Notification{ChainID: chainID, Reason: ReasonNewBlock, Height: height, Hash: hash}
}

func NewIncomingMessage(chainID, origin types.ChainID, height types.BlockHeight) Notification {
	return Notification{ChainID: chainID, Reason: ReasonNewIncomingMessage, Origin: origin, Height: height}
}

func NewRound(chainID types.ChainID, height types.BlockHeight, round types.RoundNumber) Notification {
	return Notification{ChainID: chainID, Reason: ReasonNewRound, Height: height, Round: round}
}
