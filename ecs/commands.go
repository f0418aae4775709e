package ecs

import (
	"fmt"
	"sync"
)

// CommandBuffer is the append-only deferred log for structural mutations:
// entity create/destroy and component insert/remove staged from
// concurrently running units, where direct mutation would invalidate open
// query bitmaps. Flush replays every command exactly once, in submission
// order, at a barrier.
type CommandBuffer struct {
	mu   sync.Mutex
	cmds []command
}

type command struct {
	kind  string
	apply func(*World) error
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{cmds: make([]command, 0, 64)}
}

func (b *CommandBuffer) push(kind string, apply func(*World) error) {
	b.mu.Lock()
	b.cmds = append(b.cmds, command{kind, apply})
	b.mu.Unlock()
}

// Create stages an entity creation. init, if non-nil, runs right after the
// entity exists so components can be attached in the same log position.
func (b *CommandBuffer) Create(init func(*World, Entity)) {
	b.push("create", func(w *World) error {
		e := w.Create()
		if init != nil {
			init(w, e)
		}
		return nil
	})
}

// Destroy stages an entity destruction. Handles gone stale by flush time
// are skipped.
func (b *CommandBuffer) Destroy(e Entity) {
	b.push("destroy", func(w *World) error {
		w.Destroy(e)
		return nil
	})
}

// QueueInsert stages a component insert-or-replace on e. Skipped if e is
// stale by flush time.
func QueueInsert[T any](b *CommandBuffer, e Entity, v T) {
	b.push("insert", func(w *World) error {
		if !w.Alive(e) {
			return nil
		}
		return MutStorageOf[T](w).Insert(e, v)
	})
}

// QueueRemove stages a component removal on e.
func QueueRemove[T any](b *CommandBuffer, e Entity) {
	b.push("remove", func(w *World) error {
		if !w.Alive(e) {
			return nil
		}
		MutStorageOf[T](w).Remove(e)
		return nil
	})
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cmds)
}

// Flush applies all staged commands in submission order and clears the
// log. The caller must guarantee no units are running concurrently.
func (b *CommandBuffer) Flush(w *World) error {
	b.mu.Lock()
	cmds := b.cmds
	b.cmds = b.cmds[len(b.cmds):]
	b.mu.Unlock()

	for _, c := range cmds {
		if err := c.apply(w); err != nil {
			return fmt.Errorf("%s: %w", c.kind, err)
		}
	}
	return nil
}
