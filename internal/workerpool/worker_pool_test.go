package workerpool

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	pool := New(4, silentLogger())

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(Task{
			ID: "t",
			Execute: func(ctx context.Context) {
				atomic.AddInt64(&count, 1)
			},
		}))
	}
	pool.Wait()

	require.Equal(t, int64(n), count)
	require.Equal(t, int64(n), pool.Stats().Completed)
}

func TestPoolDefaultsToSizeOneWhenNonPositive(t *testing.T) {
	pool := New(0, silentLogger())
	require.Equal(t, 1, pool.Stats().Size)
	pool.Wait()
}

func TestPoolExecuteReceivesCancellableContext(t *testing.T) {
	pool := New(1, silentLogger())

	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		ID: "t",
		Execute: func(ctx context.Context) {
			require.NoError(t, ctx.Err())
			close(done)
		},
	}))
	<-done
	pool.Wait()
}
