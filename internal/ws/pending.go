package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCallTimeout is delivered to the callback when the charge point never
// confirms an outbound call.
var ErrCallTimeout = errors.New("ws: call confirmation timed out")

// newCallID generates correlation ids for outbound calls. Swappable in tests.
var newCallID = uuid.NewString

// CallCallback receives the CALLRESULT payload for an outbound call, or an
// error on timeout.
type CallCallback func(chargePointID string, payload json.RawMessage, err error)

type pendingCall struct {
	chargePointID string
	action        string
	callback      CallCallback
	timer         *time.Timer
}

// pendingCalls correlates outbound CALL frames with their CALLRESULT by
// unique id. One entry per in-flight call, evicted on confirmation or timeout.
type pendingCalls struct {
	mu      sync.Mutex
	calls   map[string]*pendingCall
	timeout time.Duration
}

func newPendingCalls(timeout time.Duration) *pendingCalls {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &pendingCalls{
		calls:   make(map[string]*pendingCall),
		timeout: timeout,
	}
}

// track registers an in-flight call and arms its timeout. Returns the
// correlation id to embed in the frame.
func (p *pendingCalls) track(chargePointID, action string, cb CallCallback) string {
	id := newCallID()
	call := &pendingCall{
		chargePointID: chargePointID,
		action:        action,
		callback:      cb,
	}
	call.timer = time.AfterFunc(p.timeout, func() {
		p.expire(id)
	})

	p.mu.Lock()
	p.calls[id] = call
	p.mu.Unlock()
	return id
}

// resolve completes a call with the confirmation payload. Unknown ids are
// ignored; the charge point may answer after the timeout fired. Ownership is
// checked before eviction so a foreign charge point reusing an id cannot
// swallow a call still owed to its real owner.
func (p *pendingCalls) resolve(chargePointID, uniqueID string, payload json.RawMessage) {
	p.mu.Lock()
	call, ok := p.calls[uniqueID]
	if !ok || call.chargePointID != chargePointID {
		p.mu.Unlock()
		return
	}
	delete(p.calls, uniqueID)
	p.mu.Unlock()

	call.timer.Stop()
	if call.callback != nil {
		go call.callback(chargePointID, payload, nil)
	}
}

// dropForChargePoint fails every pending call addressed to a disconnected
// charge point.
func (p *pendingCalls) dropForChargePoint(chargePointID string) {
	p.mu.Lock()
	var dropped []*pendingCall
	for id, call := range p.calls {
		if call.chargePointID == chargePointID {
			delete(p.calls, id)
			dropped = append(dropped, call)
		}
	}
	p.mu.Unlock()

	for _, call := range dropped {
		call.timer.Stop()
		if call.callback != nil {
			go call.callback(chargePointID, nil, errors.New("ws: charge point disconnected"))
		}
	}
}

func (p *pendingCalls) expire(uniqueID string) {
	call := p.take(uniqueID)
	if call == nil {
		return
	}
	if call.callback != nil {
		call.callback(call.chargePointID, nil, ErrCallTimeout)
	}
}

func (p *pendingCalls) take(uniqueID string) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[uniqueID]
	if !ok {
		return nil
	}
	delete(p.calls, uniqueID)
	return call
}
