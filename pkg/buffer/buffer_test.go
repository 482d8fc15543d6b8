package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/config"
	cerrors "github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/metric"
)

func newBuf[T any](t *testing.T, capacity int, opts ...Option[T]) Buffer[T] {
	t.Helper()
	buf, err := NewRingBuffer[T](capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })
	return buf
}

func TestNewRingBufferRejectsZeroCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewRingBuffer[int](capacity)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cerrors.ErrBadParameter))
		assert.Equal(t, cerrors.BadParameter, cerrors.Code(err))
	}
}

func TestRingBufferBasicOperations(t *testing.T) {
	buf := newBuf[string](t, 3)

	assert.Equal(t, 3, buf.Length())
	assert.Equal(t, 0, buf.Readable())
	assert.Equal(t, 3, buf.Writable())

	require.NoError(t, buf.Write("first"))
	require.NoError(t, buf.Write("second"))

	peeked, err := buf.Peek()
	require.NoError(t, err)
	assert.Equal(t, "first", peeked)
	assert.Equal(t, 2, buf.Readable())

	item, err := buf.Read()
	require.NoError(t, err)
	assert.Equal(t, "first", item)

	item, err = buf.Read()
	require.NoError(t, err)
	assert.Equal(t, "second", item)

	_, err = buf.Read()
	assert.ErrorIs(t, err, cerrors.ErrBufferEmpty)
	assert.Equal(t, cerrors.BufferEmpty, cerrors.Status(err))
}

func TestRingBufferConservation(t *testing.T) {
	policies := []OverflowPolicy{DiscardOldest, DiscardNewest, Fail}

	for _, policy := range policies {
		for capacity := 1; capacity <= 5; capacity++ {
			buf := newBuf[int](t, capacity, WithOverflowPolicy[int](policy))

			// interleave writes and reads in an uneven pattern to wrap the cursors
			for i := 0; i < 40; i++ {
				_ = buf.Write(i)
				assert.Equal(t, capacity, buf.Readable()+buf.Writable(), "policy %s cap %d", policy, capacity)
				if i%3 == 0 {
					_, _ = buf.Read()
					assert.Equal(t, capacity, buf.Readable()+buf.Writable())
				}
			}
			_ = buf.ReadBatch(2)
			assert.Equal(t, capacity, buf.Readable()+buf.Writable())
			_, _ = buf.ReadLatest()
			assert.Equal(t, capacity, buf.Readable()+buf.Writable())
		}
	}
}

func TestRingBufferOverflowPolicies(t *testing.T) {
	t.Run("DiscardOldest", func(t *testing.T) {
		var dropped []int
		buf := newBuf[int](t, 2,
			WithOverflowPolicy[int](DiscardOldest),
			WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
		)
		require.NoError(t, buf.Write(1))
		require.NoError(t, buf.Write(2))
		require.NoError(t, buf.Write(3))

		assert.Equal(t, []int{1}, dropped)
		assert.Equal(t, []int{2, 3}, buf.ReadBatch(5))
		assert.Equal(t, int64(1), buf.Stats().Drops())
		assert.Equal(t, int64(1), buf.Stats().Overflows())
	})

	t.Run("DiscardNewest", func(t *testing.T) {
		var dropped []int
		buf := newBuf[int](t, 2,
			WithOverflowPolicy[int](DiscardNewest),
			WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
		)
		require.NoError(t, buf.Write(1))
		require.NoError(t, buf.Write(2))
		err := buf.Write(3)

		assert.ErrorIs(t, err, cerrors.ErrBufferFull)
		assert.Equal(t, []int{3}, dropped)
		assert.Equal(t, []int{1, 2}, buf.ReadBatch(5))
	})

	t.Run("Fail", func(t *testing.T) {
		buf := newBuf[int](t, 1, WithOverflowPolicy[int](Fail))
		require.NoError(t, buf.Write(1))

		err := buf.Write(2)
		assert.ErrorIs(t, err, cerrors.ErrBufferFull)
		assert.Equal(t, int64(0), buf.Stats().Drops())

		item, err := buf.Read()
		require.NoError(t, err)
		assert.Equal(t, 1, item)
	})
}

func TestBlockPolicyWithTimeout(t *testing.T) {
	buf := newBuf[int](t, 1,
		WithOverflowPolicy[int](Block),
		WithWriteTimeout[int](30*time.Millisecond),
	)
	require.NoError(t, buf.Write(1))

	start := time.Now()
	err := buf.Write(2)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, cerrors.ErrBufferTimeout)
	assert.Equal(t, cerrors.BufferTimeout, cerrors.Status(err))
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
	assert.Equal(t, int64(1), buf.Stats().Timeouts())
	assert.Equal(t, 1, buf.Readable())
}

func TestBlockPolicyUnblocksOnRead(t *testing.T) {
	buf := newBuf[int](t, 1, WithOverflowPolicy[int](Block))
	require.NoError(t, buf.Write(1))

	done := make(chan error, 1)
	go func() {
		done <- buf.Write(2)
	}()

	select {
	case <-done:
		t.Fatal("write should block while the buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	item, err := buf.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, item)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked write did not resume")
	}

	item, err = buf.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, item)
}

func TestBlockPolicyContextCancellation(t *testing.T) {
	buf := newBuf[int](t, 1, WithOverflowPolicy[int](Block))
	require.NoError(t, buf.Write(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- buf.WriteContext(ctx, 2)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not wake the writer")
	}
}

func TestWaitForDataRead(t *testing.T) {
	buf := newBuf[int](t, 2,
		WithUnderflowPolicy[int](WaitForData),
		WithReadTimeout[int](500*time.Millisecond),
	)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = buf.Write(7)
	}()

	item, err := buf.Read()
	require.NoError(t, err)
	assert.Equal(t, 7, item)
}

func TestWaitForDataTimeout(t *testing.T) {
	buf := newBuf[int](t, 2,
		WithUnderflowPolicy[int](WaitForData),
		WithReadTimeout[int](20*time.Millisecond),
	)

	_, err := buf.Read()
	assert.ErrorIs(t, err, cerrors.ErrBufferTimeout)
}

func TestCloseWakesBlockedReaders(t *testing.T) {
	buf, err := NewRingBuffer[int](1, WithUnderflowPolicy[int](WaitForData))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := buf.Read()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, cerrors.ErrBufferClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the reader")
	}

	assert.ErrorIs(t, buf.Write(1), cerrors.ErrBufferClosed)
}

func TestReadLatest(t *testing.T) {
	buf := newBuf[int](t, 4)
	for i := 1; i <= 6; i++ {
		require.NoError(t, buf.Write(i))
	}

	item, err := buf.ReadLatest()
	require.NoError(t, err)
	assert.Equal(t, 6, item)
	assert.Equal(t, 0, buf.Readable())
	assert.Equal(t, 4, buf.Writable())

	_, err = buf.ReadLatest()
	assert.ErrorIs(t, err, cerrors.ErrBufferEmpty)
}

func TestReset(t *testing.T) {
	buf := newBuf[int](t, 3)
	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))

	buf.Reset()
	assert.Equal(t, 0, buf.Readable())
	assert.Equal(t, 3, buf.Writable())

	require.NoError(t, buf.Write(3))
	item, err := buf.Read()
	require.NoError(t, err)
	assert.Equal(t, 3, item)
}

func TestStatisticsFillLevel(t *testing.T) {
	buf := newBuf[int](t, 4)
	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Write(i))
	}
	_, err := buf.Peek()
	require.NoError(t, err)
	_, err = buf.Read()
	require.NoError(t, err)

	stats := buf.Stats()
	assert.Equal(t, int64(2), stats.CurrentSize())
	assert.Equal(t, int64(3), stats.MaxSize())
	assert.Equal(t, int64(1), stats.Peeks())

	buf.Reset()
	assert.Equal(t, int64(0), stats.CurrentSize())
	assert.Equal(t, int64(3), stats.MaxSize(), "high-water mark survives a reset")
}

func TestRingBufferThreadSafety(t *testing.T) {
	buf := newBuf[int](t, 16,
		WithOverflowPolicy[int](Block),
		WithUnderflowPolicy[int](WaitForData),
	)

	const total = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			assert.NoError(t, buf.Write(i))
		}
	}()

	for next := 0; next < total; next++ {
		item, err := buf.Read()
		require.NoError(t, err)
		require.Equal(t, next, item, "items must arrive in FIFO order")
	}
	wg.Wait()

	assert.Equal(t, int64(total), buf.Stats().Writes())
	assert.Equal(t, int64(total), buf.Stats().Reads())
}

func TestRingBufferMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	buf, err := NewRingBuffer[int](2,
		WithOverflowPolicy[int](DiscardOldest),
		WithMetrics[int](registry, "conn_a"),
	)
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3))

	rb := buf.(*ringBuffer[int])
	assert.Equal(t, float64(3), testutil.ToFloat64(rb.metrics.writes))
	assert.Equal(t, float64(1), testutil.ToFloat64(rb.metrics.drops))
	assert.Equal(t, float64(2), testutil.ToFloat64(rb.metrics.size))

	_, err = NewRingBuffer[int](2, WithMetrics[int](registry, "conn_a"))
	require.Error(t, err, "duplicate metric prefix must be rejected")
}

func TestConfigFromProperties(t *testing.T) {
	tests := []struct {
		name    string
		props   config.Properties
		want    Config
		wantErr bool
	}{
		{
			name:  "defaults",
			props: config.Properties{},
			want:  DefaultConfig(),
		},
		{
			name: "full set",
			props: config.Properties{
				PropLength:       "16",
				PropFullPolicy:   "block",
				PropWriteTimeout: "0.25",
				PropEmptyPolicy:  "block",
				PropReadTimeout:  "1",
			},
			want: Config{
				Length:       16,
				Overflow:     Block,
				Underflow:    WaitForData,
				WriteTimeout: 250 * time.Millisecond,
				ReadTimeout:  time.Second,
			},
		},
		{
			name:  "do_nothing",
			props: config.Properties{PropFullPolicy: "do_nothing", PropEmptyPolicy: "do_nothing"},
			want:  Config{Length: DefaultLength, Overflow: DiscardNewest, Underflow: ReturnEmpty},
		},
		{name: "zero length", props: config.Properties{PropLength: "0"}, wantErr: true},
		{name: "bad length", props: config.Properties{PropLength: "many"}, wantErr: true},
		{name: "bad policy", props: config.Properties{PropFullPolicy: "explode"}, wantErr: true},
		{name: "negative timeout", props: config.Properties{PropWriteTimeout: "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfigFromProperties(tt.props)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.BadParameter, cerrors.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
