package naming

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/natsclient"
)

// MockKVStore implements KVStore for testing.
type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key string) (*natsclient.KVEntry, error) {
	args := m.Called(ctx, key)
	if entry := args.Get(0); entry != nil {
		return entry.(*natsclient.KVEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockKVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	args := m.Called(ctx, key, value)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockKVStore) Keys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if keys := args.Get(0); keys != nil {
		return keys.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestKV_BindStoresJSON(t *testing.T) {
	ctx := context.Background()
	store := new(MockKVStore)
	entry := Entry{Kind: KindComponent, Target: "seq", Ports: []string{"seq.out"}, BoundAt: time.Unix(100, 0).UTC()}

	store.On("Put", ctx, "seq.rtc", mock.MatchedBy(func(data []byte) bool {
		var got Entry
		return json.Unmarshal(data, &got) == nil && got.Target == "seq" && got.Ports[0] == "seq.out"
	})).Return(uint64(7), nil).Once()

	require.NoError(t, NewKV(store, nil).Bind(ctx, "seq.rtc", entry))
	store.AssertExpectations(t)
}

func TestKV_BindErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockKVStore)
	kv := NewKV(store, nil)

	err := kv.Bind(ctx, "bad name", Entry{})
	assert.True(t, errors.IsInvalid(err))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)

	store.On("Put", ctx, "seq.rtc", mock.Anything).Return(uint64(0), stderrors.New("nats: timeout")).Once()
	err = kv.Bind(ctx, "seq.rtc", Entry{})
	assert.True(t, errors.IsTransient(err), "store failures are retryable")
	store.AssertExpectations(t)
}

func TestKV_Resolve(t *testing.T) {
	ctx := context.Background()
	store := new(MockKVStore)
	kv := NewKV(store, nil)

	data, err := json.Marshal(Entry{Kind: KindContext, Target: "main"})
	require.NoError(t, err)
	store.On("Get", ctx, "main.ec").Return(&natsclient.KVEntry{Key: "main.ec", Value: data, Revision: 3}, nil)
	store.On("Get", ctx, "ghost.rtc").Return(nil, natsclient.ErrKVKeyNotFound)
	store.On("Get", ctx, "junk.rtc").Return(&natsclient.KVEntry{Key: "junk.rtc", Value: []byte("{")}, nil)
	store.On("Get", ctx, "slow.rtc").Return(nil, context.DeadlineExceeded)

	e, err := kv.Resolve(ctx, "main.ec")
	require.NoError(t, err)
	assert.Equal(t, KindContext, e.Kind)
	assert.Equal(t, "main", e.Target)

	_, err = kv.Resolve(ctx, "ghost.rtc")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = kv.Resolve(ctx, "junk.rtc")
	assert.True(t, errors.IsInvalid(err))

	_, err = kv.Resolve(ctx, "slow.rtc")
	assert.True(t, errors.IsTransient(err))
	store.AssertExpectations(t)
}

func TestKV_UnbindUnknownSucceeds(t *testing.T) {
	ctx := context.Background()
	store := new(MockKVStore)
	store.On("Delete", ctx, "seq.rtc").Return(natsclient.ErrKVKeyNotFound).Once()
	store.On("Delete", ctx, "relay.rtc").Return(stderrors.New("connection closed")).Once()

	kv := NewKV(store, nil)
	assert.NoError(t, kv.Unbind(ctx, "seq.rtc"))
	assert.Error(t, kv.Unbind(ctx, "relay.rtc"))
	store.AssertExpectations(t)
}

func TestKV_ListSorted(t *testing.T) {
	ctx := context.Background()
	store := new(MockKVStore)
	store.On("Keys", ctx).Return([]string{"seq.rtc", "main.ec", "relay.rtc"}, nil).Once()

	names, err := NewKV(store, nil).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.ec", "relay.rtc", "seq.rtc"}, names)
}

func TestBinder_InvalidErrorsAreNotRetried(t *testing.T) {
	svc := &rejecting{Memory: NewMemory()}
	b := startBinder(t, svc, WithRetry(fastRetry(5)))

	require.NoError(t, b.Bind("seq.rtc", Entry{}))
	require.Eventually(t, func() bool { return b.Stats().Failed == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), svc.calls.Load())
	assert.Empty(t, b.Bound())
}

// rejecting refuses every binding as invalid input.
type rejecting struct {
	*Memory
	calls atomic.Int32
}

func (r *rejecting) Bind(context.Context, string, Entry) error {
	r.calls.Add(1)
	return errors.WrapInvalid(errors.ErrBadParameter, "rejecting", "Bind", "check entry")
}
