package ctxlogger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendCtxAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{slog.NewTextHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("room_id", "r1"))
	child := AppendCtx(ctx, slog.String("participant_id", "p1"))

	logger.InfoContext(ctx, "parent")
	assert.Contains(t, buf.String(), "room_id=r1")
	assert.NotContains(t, buf.String(), "participant_id")

	buf.Reset()
	logger.InfoContext(child, "child")
	assert.Contains(t, buf.String(), "room_id=r1")
	assert.Contains(t, buf.String(), "participant_id=p1")
}
