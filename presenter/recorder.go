package presenter

import (
	"sync"
)

// OpKind names a surface operation.
type OpKind string

const (
	OpMount      OpKind = "mount"
	OpReposition OpKind = "reposition"
	OpBeginExit  OpKind = "exit"
	OpRemove     OpKind = "remove"
)

// Op is one recorded surface call, in the form sent to remote clients.
type Op struct {
	Kind      OpKind     `json:"op"`
	Ref       NodeRef    `json:"ref"`
	Node      *Node      `json:"node,omitempty"`
	Box       *Box       `json:"box,omitempty"`
	Animation *Animation `json:"animation,omitempty"`
}

// Recorder is a Surface that logs operations for a remote renderer and
// tracks which nodes are currently live.
//
// Between drains the log is compacted so it stays proportional to the live
// nodes: a node keeps only its latest reposition, and a node mounted and
// removed within one drain window leaves no ops at all.
type Recorder struct {
	mu   sync.Mutex
	ops  []Op
	live map[NodeRef]Node

	// Per undrained window: refs mounted in it, and the index of each ref's
	// reposition op.
	fresh map[NodeRef]bool
	moved map[NodeRef]int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		live:  make(map[NodeRef]Node),
		fresh: make(map[NodeRef]bool),
		moved: make(map[NodeRef]int),
	}
}

func (r *Recorder) Mount(n Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[n.Ref] = n
	r.fresh[n.Ref] = true
	r.ops = append(r.ops, Op{Kind: OpMount, Ref: n.Ref, Node: &n})
	return nil
}

func (r *Recorder) Reposition(ref NodeRef, box Box) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[ref]; !ok {
		return
	}
	if idx, ok := r.moved[ref]; ok {
		r.ops[idx].Box = &box
		return
	}
	r.moved[ref] = len(r.ops)
	r.ops = append(r.ops, Op{Kind: OpReposition, Ref: ref, Box: &box})
}

func (r *Recorder) BeginExit(ref NodeRef, anim Animation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[ref]; !ok {
		return
	}
	r.ops = append(r.ops, Op{Kind: OpBeginExit, Ref: ref, Animation: &anim})
}

func (r *Recorder) RemoveNow(ref NodeRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[ref]; !ok {
		return
	}
	delete(r.live, ref)
	if r.fresh[ref] {
		r.forget(ref)
		return
	}
	r.ops = append(r.ops, Op{Kind: OpRemove, Ref: ref})
}

// forget drops every op of ref from the undrained log.
func (r *Recorder) forget(ref NodeRef) {
	delete(r.fresh, ref)
	delete(r.moved, ref)
	kept := r.ops[:0]
	for _, op := range r.ops {
		if op.Ref != ref {
			kept = append(kept, op)
		}
	}
	clear(r.ops[len(kept):])
	r.ops = kept
	for i, op := range r.ops {
		if op.Kind == OpReposition {
			r.moved[op.Ref] = i
		}
	}
}

// Drain returns the operations recorded since the last Drain.
func (r *Recorder) Drain() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	clear(r.fresh)
	clear(r.moved)
	return ops
}

// Live returns a copy of the mounted nodes.
func (r *Recorder) Live() map[NodeRef]Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make(map[NodeRef]Node, len(r.live))
	for ref, n := range r.live {
		live[ref] = n
	}
	return live
}
