package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	tr, shutdown := New(Config{ServiceName: "warden-test"})
	defer func() { _ = shutdown(context.Background()) }()

	if tr == nil {
		t.Fatal("New() returned nil tracer")
	}
	_, span := tr.StartToolRound(context.Background(), "req-abc123", 1)
	defer span.End()
	if span == nil {
		t.Fatal("StartToolRound returned nil span")
	}
}

func TestStartRPCDispatchReturnsContext(t *testing.T) {
	tr, shutdown := New(Config{})
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := tr.StartRPCDispatch(context.Background(), "chat.request")
	defer span.End()
	if ctx == nil {
		t.Fatal("StartRPCDispatch returned nil context")
	}
}

func TestRecordErrorNilIsNoop(t *testing.T) {
	tr, shutdown := New(Config{})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tr.StartToolRound(context.Background(), "req-x", 0)
	defer span.End()
	RecordError(span, nil)
}

func TestRecordErrorOnNoopSpanDoesNotPanic(t *testing.T) {
	tr, shutdown := New(Config{})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tr.StartToolRound(context.Background(), "req-y", 0)
	defer span.End()
	RecordError(span, errors.New("boom"))
}
