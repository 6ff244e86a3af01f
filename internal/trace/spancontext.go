package trace

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// SpanContext is a remote parent span identified by the hex ids a
// calling process put in the environment. It satisfies
// ddtrace.SpanContextW3C.
type SpanContext struct {
	traceID [16]byte
	spanID  uint64
}

var ErrSpanContextCorrupted = errors.New("span context corrupted")

// ParseParent builds a SpanContext from hex trace and span ids. It
// returns nil without an error when either id is missing.
func ParseParent(traceID, spanID string) (*SpanContext, error) {
	if traceID == "" || spanID == "" {
		return nil, nil
	}
	c := &SpanContext{}
	if err := c.parseTraceID(traceID); err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(spanID, 16, 64)
	if err != nil {
		return nil, ErrSpanContextCorrupted
	}
	c.spanID = id
	return c, nil
}

func (c *SpanContext) parseTraceID(v string) error {
	if len(v) > 32 {
		v = v[len(v)-32:]
	}
	v = strings.TrimLeft(v, "0")
	if v == "" {
		return ErrSpanContextCorrupted
	}
	lower := v
	if len(v) > 16 {
		upper, err := strconv.ParseUint(v[:len(v)-16], 16, 64)
		if err != nil {
			return ErrSpanContextCorrupted
		}
		binary.BigEndian.PutUint64(c.traceID[:8], upper)
		lower = v[len(v)-16:]
	}
	l, err := strconv.ParseUint(lower, 16, 64)
	if err != nil {
		return ErrSpanContextCorrupted
	}
	binary.BigEndian.PutUint64(c.traceID[8:], l)
	return nil
}

func (c *SpanContext) SpanID() uint64 { return c.spanID }

func (c *SpanContext) TraceID() uint64 { return binary.BigEndian.Uint64(c.traceID[8:]) }

func (c *SpanContext) TraceID128() string { return hex.EncodeToString(c.traceID[:]) }

func (c *SpanContext) TraceID128Bytes() [16]byte { return c.traceID }

func (c *SpanContext) ForeachBaggageItem(func(k, v string) bool) {}
