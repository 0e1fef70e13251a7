package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRecordersWithoutApplication(t *testing.T) {
	ctx := NewContext(context.Background(), nil)

	_, ok := fromContext(ctx)
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		RecordCount(ctx, "count", 1)
		RecordDuration(ctx, "duration", time.Second)
		RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})
	})
}

func TestTraceMethodCallWithoutTransaction(t *testing.T) {
	tracer := TraceMethodCall(context.Background(), "struct", "method")
	assert.Nil(t, tracer)

	assert.NotPanics(t, func() {
		tracer.AddAttribute("key", "value")
		tracer.AddAttributes(map[string]interface{}{"key": "value"})
		tracer.OnError(errors.New("failure"))
		tracer.End()
	})
}
