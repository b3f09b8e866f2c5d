package log

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func bufferedLogger(level int, isJSON bool) (Logger, *bytes.Buffer, *bufio.Writer) {
	var b bytes.Buffer
	w := bufio.NewWriter(&b)
	return New(zapcore.AddSync(w), level, isJSON), &b, w
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		allowed int
		log     func(Logger)
		printed bool
	}{
		{"info at info", InfoLevel, func(l Logger) { l.Infow("hello") }, true},
		{"debug at info", InfoLevel, func(l Logger) { l.Debugw("hello") }, false},
		{"error at debug", DebugLevel, func(l Logger) { l.Errorw("hello") }, true},
		{"warn at error", ErrorLevel, func(l Logger) { l.Warnw("hello") }, false},
		{"warn at debug", DebugLevel, func(l Logger) { l.Warnw("hello") }, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l, b, w := bufferedLogger(test.allowed, true)
			test.log(l)
			require.NoError(t, w.Flush())
			if test.printed {
				require.Contains(t, b.String(), "hello")
			} else {
				require.Empty(t, b.String())
			}
		})
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	l, b, w := bufferedLogger(InfoLevel, true)
	l.Named("dkg").With("epoch", 7).Infow("transcript recorded", "dealer", 2)
	require.NoError(t, w.Flush())

	out := b.String()
	require.Contains(t, out, `"logger":"dkg"`)
	require.Contains(t, out, `"epoch":7`)
	require.Contains(t, out, `"dealer":2`)
}

func TestLoggerConsole(t *testing.T) {
	l, b, w := bufferedLogger(InfoLevel, false)
	l.Infow("plain", "k", "v")
	require.NoError(t, w.Flush())
	require.Contains(t, b.String(), "plain")
	require.NotContains(t, b.String(), `"msg"`)
}

func TestLoggerContext(t *testing.T) {
	l, _, _ := bufferedLogger(InfoLevel, true)
	ctx := ToContext(context.Background(), l)
	require.Equal(t, l, FromContextOrDefault(ctx))
	require.NotNil(t, FromContextOrDefault(context.Background()))
}
