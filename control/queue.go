package control

import (
	"errors"
	"time"

	"github.com/jonoton/vigil/stage"
)

// Queue errors
var (
	ErrQueueFull = errors.New("delta queue full")
	ErrTimeout   = errors.New("runner did not answer in time")
)

// Kind of delta
type Kind int

// Delta kinds
const (
	List Kind = iota
	Describe
	Override
	Reconfigure
	Save
	Seek
	Preview
)

var kindNames = map[Kind]string{
	List:        "list",
	Describe:    "describe",
	Override:    "override",
	Reconfigure: "reconfigure",
	Save:        "save",
	Seek:        "seek",
	Preview:     "preview",
}

func (k Kind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return "unknown"
}

// Reply is the runner answer to a delta
type Reply struct {
	Value interface{}
	Err   error
}

// Delta is one request for the runner, applied between frames
type Delta struct {
	Kind     Kind
	Stage    string
	Identity stage.Identity
	Params   stage.Params
	Frame    int64
	Width    int
	reply    chan Reply
}

// Answer replies to the submitter, pushed deltas drop the answer
func (d *Delta) Answer(value interface{}, err error) {
	if d.reply == nil {
		return
	}
	select {
	case d.reply <- Reply{Value: value, Err: err}:
	default:
	}
}

// Queue carries deltas from the control surfaces to one runner
type Queue struct {
	deltas chan *Delta
}

// NewQueue creates a new Queue
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		deltas: make(chan *Delta, capacity),
	}
}

// Push enqueues d without waiting for an answer
func (q *Queue) Push(d *Delta) bool {
	select {
	case q.deltas <- d:
		return true
	default:
		return false
	}
}

// Submit enqueues d and waits up to timeout for the runner to answer
func (q *Queue) Submit(d *Delta, timeout time.Duration) (interface{}, error) {
	d.reply = make(chan Reply, 1)
	if !q.Push(d) {
		return nil, ErrQueueFull
	}
	select {
	case r := <-d.reply:
		return r.Value, r.Err
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// Drain hands every queued delta to handler and returns how many ran
func (q *Queue) Drain(handler func(*Delta)) (count int) {
	for {
		select {
		case d := <-q.deltas:
			handler(d)
			count++
		default:
			return
		}
	}
}

// Len returns the number of waiting deltas
func (q *Queue) Len() int {
	return len(q.deltas)
}
