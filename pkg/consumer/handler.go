package consumer

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/downfa11-org/logstream/pkg/types"
	"github.com/downfa11-org/logstream/util"
	"github.com/google/uuid"
)

// Handler processes one polled batch. Messages arrive in offset order.
type Handler interface {
	Handle(ctx context.Context, msgs []types.Message) error
}

// HandlerFunc handles messages one at a time, stopping at the first error.
type HandlerFunc func(msg types.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msgs []types.Message) error {
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(msg); err != nil {
			return err
		}
	}
	return nil
}

const maxPrintLen = 64

// PrintHandler decodes each payload as text and logs it.
type PrintHandler struct{}

func (PrintHandler) Handle(_ context.Context, msgs []types.Message) error {
	for _, msg := range msgs {
		payload := string(msg.Payload)
		if len(payload) > maxPrintLen {
			payload = payload[:maxPrintLen] + "..."
		}
		util.Info("Handling message at offset: %d, payload: %s", msg.Offset, payload)
	}
	return nil
}

// DedupHandler forwards each message to Next at most once. Messages are keyed by id,
// or by a hash of the payload when the id is unset.
type DedupHandler struct {
	Next Handler

	mu         sync.Mutex
	seenIDs    map[uuid.UUID]struct{}
	seenHashes map[uint64]struct{}

	processed  atomic.Int64
	duplicates atomic.Int64
}

func NewDedupHandler(next Handler) *DedupHandler {
	return &DedupHandler{
		Next:       next,
		seenIDs:    make(map[uuid.UUID]struct{}),
		seenHashes: make(map[uint64]struct{}),
	}
}

// Handle forwards the unseen messages of msgs. They are recorded as seen only after Next
// accepts them, so a batch that failed downstream is forwarded again on retry.
func (h *DedupHandler) Handle(ctx context.Context, msgs []types.Message) error {
	batchIDs := make(map[uuid.UUID]struct{})
	batchHashes := make(map[uint64]struct{})

	h.mu.Lock()
	fresh := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if h.seen(msg, batchIDs, batchHashes) {
			h.duplicates.Add(1)
			util.Debug("skipping duplicate message at offset %d", msg.Offset)
			continue
		}
		fresh = append(fresh, msg)
	}
	h.mu.Unlock()

	if len(fresh) > 0 && h.Next != nil {
		if err := h.Next.Handle(ctx, fresh); err != nil {
			return err
		}
	}

	h.mu.Lock()
	for id := range batchIDs {
		h.seenIDs[id] = struct{}{}
	}
	for hash := range batchHashes {
		h.seenHashes[hash] = struct{}{}
	}
	h.mu.Unlock()
	h.processed.Add(int64(len(fresh)))
	return nil
}

// seen reports whether msg was handled before or appears earlier in the current batch,
// adding it to the batch sets otherwise. Callers hold mu.
func (h *DedupHandler) seen(msg types.Message, batchIDs map[uuid.UUID]struct{}, batchHashes map[uint64]struct{}) bool {
	if msg.ID != uuid.Nil {
		_, done := h.seenIDs[msg.ID]
		_, pending := batchIDs[msg.ID]
		if done || pending {
			return true
		}
		batchIDs[msg.ID] = struct{}{}
		return false
	}

	hash := payloadHash(msg.Payload)
	_, done := h.seenHashes[hash]
	_, pending := batchHashes[hash]
	if done || pending {
		return true
	}
	batchHashes[hash] = struct{}{}
	return false
}

func (h *DedupHandler) Processed() int64 {
	return h.processed.Load()
}

func (h *DedupHandler) Duplicates() int64 {
	return h.duplicates.Load()
}

func payloadHash(payload []byte) uint64 {
	h := fnv.New64a()
	h.Write(payload)
	return h.Sum64()
}
