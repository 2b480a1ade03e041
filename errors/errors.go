package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidEventKind = fmt.Errorf("invalid event kind")
	ErrInvalidPayload   = fmt.Errorf("invalid event payload")
	ErrNotOperator      = fmt.Errorf("connection lacks the operators role")
	ErrUnknownTransport = fmt.Errorf("no registry entry for transport")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrSlowConsumer     = fmt.Errorf("connection buffer full")
)
