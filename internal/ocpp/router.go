package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// HandlerFunc processes a CALL payload and returns the response body.
type HandlerFunc func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error)

// ResultHandler receives CALLRESULT frames so pending outbound calls can be
// matched by unique id.
type ResultHandler interface {
	HandleCallResult(chargePointID, uniqueID string, payload json.RawMessage)
}

// Router dispatches actions to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register attaches a handler to an action.
func (r *Router) Register(action string, handler HandlerFunc) {
	r.handlers[action] = handler
}

// Route executes the handler for a frame.
func (r *Router) Route(ctx context.Context, chargePointID string, frame *Frame) (interface{}, error) {
	handler, ok := r.handlers[frame.Action]
	if !ok {
		return nil, fmt.Errorf("ocpp: unsupported action %s", frame.Action)
	}
	return handler(ctx, chargePointID, frame.Payload)
}

// Processor ties together parsing, routing and response encoding.
type Processor struct {
	router  *Router
	results ResultHandler
	logger  *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(router *Router, results ResultHandler, logger *zap.Logger) *Processor {
	return &Processor{
		router:  router,
		results: results,
		logger:  logger,
	}
}

// Process handles one raw frame and returns the response frame bytes, or nil
// when no reply is due. A malformed frame returns ErrMalformedFrame; the caller
// drops it without tearing the connection down.
func (p *Processor) Process(ctx context.Context, chargePointID string, raw []byte) ([]byte, error) {
	frame, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if frame.MessageType == MessageTypeCallResult {
		if p.results != nil {
			p.results.HandleCallResult(chargePointID, frame.UniqueID, frame.Payload)
		}
		return nil, nil
	}

	responsePayload, err := p.router.Route(ctx, chargePointID, frame)
	if err != nil {
		p.logger.Warn("ocpp handler failed",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", frame.Action),
			zap.Error(err),
		)
		return BuildCallError(frame.UniqueID, errorCode(err), err.Error())
	}

	if responsePayload == nil {
		return nil, nil
	}

	respBytes, err := BuildCallResult(frame.UniqueID, responsePayload)
	if err != nil {
		p.logger.Error("encode ocpp response failed", zap.Error(err))
		return nil, err
	}
	return respBytes, nil
}

func errorCode(err error) string {
	if errors.Is(err, models.ErrInvalidStatus) {
		return protocol.ErrorCodeInvalidStatus
	}
	return protocol.ErrorCodeInternal
}
