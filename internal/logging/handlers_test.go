package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_SendsToEverySink(t *testing.T) {
	var file, graylog bytes.Buffer
	f := NewFanout(
		slog.NewTextHandler(&file, nil),
		slog.NewJSONHandler(&graylog, nil),
	)
	slog.New(f).Info("track projected", "zone", "18N")

	assert.Contains(t, file.String(), "zone=18N")
	assert.Contains(t, graylog.String(), `"zone":"18N"`)
}

func TestFanout_DropsNilSinks(t *testing.T) {
	var buf bytes.Buffer
	f := NewFanout(nil, slog.NewTextHandler(&buf, nil), nil)
	require.Len(t, f.sinks, 1)

	slog.New(f).Info("works")
	assert.Contains(t, buf.String(), "works")
}

func TestFanout_EnabledIfAnySinkIs(t *testing.T) {
	ctx := context.Background()
	info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewFanout(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewFanout(info, debug).Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewFanout().Enabled(ctx, slog.LevelError))
}

func TestFanout_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	f := NewFanout(slog.NewTextHandler(&buf, nil))

	slog.New(f.WithAttrs([]slog.Attr{slog.String("session", "s1")})).Info("a")
	slog.New(f.WithGroup("export")).Info("b", "files", 2)

	assert.Contains(t, buf.String(), "session=s1")
	assert.Contains(t, buf.String(), "export.files=2")
	assert.Same(t, f, f.WithGroup(""))
}

type failingSink struct{ slog.Handler }

func (failingSink) Enabled(context.Context, slog.Level) bool { return true }
func (failingSink) Handle(context.Context, slog.Record) error {
	return errors.New("graylog unreachable")
}

func TestFanout_JoinsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	f := NewFanout(failingSink{}, slog.NewTextHandler(&buf, nil))

	var r slog.Record
	r.Message = "still written"
	err := f.Handle(context.Background(), r)

	assert.ErrorContains(t, err, "graylog unreachable")
	assert.Contains(t, buf.String(), "still written")
}

func TestStamped_EvaluatesPerRecord(t *testing.T) {
	var buf bytes.Buffer
	n := 0
	h := NewStamped(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		n++
		return []slog.Attr{slog.Int("seq", n)}
	})
	log := slog.New(h)
	log.Info("one")
	log.With("session", "s1").WithGroup("g").Info("two")

	assert.Contains(t, buf.String(), "seq=1")
	assert.Contains(t, buf.String(), "session=s1")
	assert.Contains(t, buf.String(), "g.seq=2")
}

func TestStamped_NilFunc(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewStamped(slog.NewTextHandler(&buf, nil), nil)).Info("plain")
	assert.Contains(t, buf.String(), "plain")
}
