package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/cardsched/internal/logger"
)

func newBufferLogger(buf *bytes.Buffer, level logger.Level) *logger.Logger {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return logger.New(
		logger.WithOutput(buf),
		logger.WithLevel(level),
		logger.WithColors(false),
		logger.WithCaller(false),
		logger.WithClock(func() time.Time { return fixed }),
	)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DEBUG, logger.ParseLevel("debug"))
	assert.Equal(t, logger.WARN, logger.ParseLevel("WARNING"))
	assert.Equal(t, logger.ERROR, logger.ParseLevel(" error "))
	assert.Equal(t, logger.INFO, logger.ParseLevel("verbose"))
	assert.False(t, logger.ValidLevel("verbose"))
	assert.True(t, logger.ValidLevel("warn"))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, logger.WARN)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  shown 1")
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, logger.DEBUG).
		WithPrefix("sched").
		WithFields(map[string]any{"zeta": 1, "alpha": "a"}).
		WithField("mid", true)

	log.Info("answered")

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, "2024-03-01 10:00:00.000 INFO  [sched] answered alpha=a mid=true zeta=1", line)
}

func TestDerivedLoggersDoNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, logger.DEBUG)
	child := base.WithField("card_id", 7)

	base.Info("base")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "card_id")
	assert.Contains(t, lines[1], "card_id=7")
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, logger.DEBUG)

	ctx := logger.NewContext(context.Background(), log)
	assert.Same(t, log, logger.FromContext(ctx))
	assert.Same(t, logger.Default(), logger.FromContext(context.Background()))
}
