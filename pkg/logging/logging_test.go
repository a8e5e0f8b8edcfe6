package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Infof("hello %s", "there")

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello there", logs.All()[0].Message)
}

func TestFromContextFallback(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
