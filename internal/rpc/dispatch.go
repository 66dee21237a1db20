package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/tracing"
)

// Handler answers one method call with either a result value or a
// *Error. Handlers never panic on bad params; they return CodeInvalidParams.
type Handler func(params json.RawMessage) (any, *Error)

// MethodTable maps method name to Handler. rpc.raw is handled specially
// by Dispatcher, not registered here.
type MethodTable map[string]Handler

// Dispatcher decodes a raw JSON-RPC request, looks up its method in the
// table, and encodes the response. It never mutates state itself (that's
// each Handler's business) so it carries no mutex of its own.
type Dispatcher struct {
	methods MethodTable
	tracer  *tracing.Tracer
	metrics *metrics.Metrics
}

// NewDispatcher builds a Dispatcher over table. table needs no "rpc.raw"
// entry: Handle answers rpc.raw itself by nested dispatch over table.
func NewDispatcher(table MethodTable) *Dispatcher {
	return &Dispatcher{methods: table}
}

// WithTracer attaches an optional tracer emitting one span per
// dispatched method. A nil tracer (the NewDispatcher default) disables span
// emission.
func (d *Dispatcher) WithTracer(t *tracing.Tracer) *Dispatcher {
	d.tracer = t
	return d
}

// WithMetrics attaches an optional metrics sink recording per-method
// dispatch latency. Nil disables instrumentation.
func (d *Dispatcher) WithMetrics(m *metrics.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Handle processes one raw JSON-RPC request body and returns the raw
// response body. A malformed request (-32700) or method lookup miss
// (-32601) never reaches a Handler.
func (d *Dispatcher) Handle(raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encode(Response{JSONRPC: "2.0", Error: &Error{Code: CodeParseError, Message: "parse error"}})
	}
	if req.Method == "" {
		return encode(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeInvalidParams, Message: "method is required"}})
	}

	if req.Method == "rpc.raw" {
		return encode(Response{JSONRPC: "2.0", ID: req.ID, Result: d.handleRaw(req.Params)})
	}

	handler, ok := d.methods[req.Method]
	if !ok {
		return encode(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}})
	}

	result, rpcErr := d.invoke(req.Method, handler, req.Params)
	if rpcErr != nil {
		return encode(Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
	}
	return encode(Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// invoke runs one handler with optional tracing and latency instrumentation.
func (d *Dispatcher) invoke(method string, handler Handler, params json.RawMessage) (any, *Error) {
	start := time.Now()
	if d.tracer != nil {
		_, span := d.tracer.StartRPCDispatch(context.Background(), method)
		defer span.End()
		result, rpcErr := handler(params)
		if rpcErr != nil {
			tracing.RecordError(span, &rpcError{rpcErr})
		}
		d.observe(method, start, rpcErr)
		return result, rpcErr
	}

	result, rpcErr := handler(params)
	d.observe(method, start, rpcErr)
	return result, rpcErr
}

func (d *Dispatcher) observe(method string, start time.Time, rpcErr *Error) {
	if d.metrics == nil {
		return
	}
	outcome := "ok"
	if rpcErr != nil {
		outcome = "error"
	}
	d.metrics.RPCDispatchDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
}

// rpcError adapts *Error to the error interface so it can be recorded on a
// span without Error itself needing to satisfy error.
type rpcError struct{ err *Error }

func (e *rpcError) Error() string { return e.err.Message }

// handleRaw dispatches the inner request embedded in an "rpc.raw" call's
// params and returns the inner response as a plain value; the outer
// envelope's id, set by the caller, remains the authoritative reply id.
// "rpc.raw" is rejected as an inner method to avoid unbounded recursion.
func (d *Dispatcher) handleRaw(params json.RawMessage) Response {
	var inner Request
	if err := json.Unmarshal(params, &inner); err != nil {
		return Response{JSONRPC: "2.0", Error: &Error{Code: CodeParseError, Message: "rpc.raw: invalid nested request"}}
	}
	if inner.Method == "" {
		return Response{JSONRPC: "2.0", ID: inner.ID, Error: &Error{Code: CodeInvalidParams, Message: "rpc.raw: nested method is required"}}
	}
	if inner.Method == "rpc.raw" {
		return Response{JSONRPC: "2.0", ID: inner.ID, Error: &Error{Code: CodeInvalidParams, Message: "rpc.raw: nested rpc.raw is not permitted"}}
	}

	handler, ok := d.methods[inner.Method]
	if !ok {
		return Response{JSONRPC: "2.0", ID: inner.ID, Error: &Error{Code: CodeMethodNotFound, Message: "method not found: " + inner.Method}}
	}
	result, rpcErr := d.invoke(inner.Method, handler, inner.Params)
	if rpcErr != nil {
		return Response{JSONRPC: "2.0", ID: inner.ID, Error: rpcErr}
	}
	return Response{JSONRPC: "2.0", ID: inner.ID, Result: result}
}

func encode(resp Response) []byte {
	body, err := json.Marshal(resp)
	if err != nil {
		fallback, _ := json.Marshal(Response{JSONRPC: "2.0", Error: &Error{Code: CodeInternalError, Message: "failed to encode response"}})
		return fallback
	}
	return body
}
