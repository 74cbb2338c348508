package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "research", "req-9")
	_, child := StartChildSpan(ctx, "fetch_suggestions")
	child.SetAttr("seeds", 3)
	child.End(errors.New("upstream"))
	child.End(nil)
	root.End(nil)

	require.Len(t, root.Children, 1)
	assert.Equal(t, "req-9", child.TraceID)
	assert.EqualError(t, child.Err, "upstream")

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	assert.Contains(t, buf.String(), "span=fetch_suggestions")
	assert.Contains(t, buf.String(), "seeds=3")
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	assert.Same(t, span, SpanFromContext(ctx))
	assert.Empty(t, span.TraceID)
}
