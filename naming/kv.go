package naming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/natsclient"
)

// DefaultBucket is the KV bucket used when the configuration names none.
const DefaultBucket = "rtkit_naming"

// KVStore is the subset of natsclient.KVStore the directory uses.
type KVStore interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// KV is a Service backed by a NATS JetStream key-value bucket. Entries are
// stored as JSON under their name.
type KV struct {
	store  KVStore
	logger *slog.Logger
}

// NewKV wraps store.
func NewKV(store KVStore, logger *slog.Logger) *KV {
	if logger == nil {
		logger = slog.Default()
	}
	return &KV{store: store, logger: logger.With("naming", "kv")}
}

func (k *KV) Bind(ctx context.Context, name string, entry Entry) error {
	if err := ValidateName(name); err != nil {
		return errors.WrapInvalid(err, "naming.KV", "Bind", "validate name")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.WrapInvalid(err, "naming.KV", "Bind", "encode entry")
	}
	rev, err := k.store.Put(ctx, name, data)
	if err != nil {
		return errors.WrapTransient(err, "naming.KV", "Bind", "put entry")
	}
	k.logger.Debug("name bound", "name", name, "revision", rev)
	return nil
}

func (k *KV) Unbind(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return errors.WrapInvalid(err, "naming.KV", "Unbind", "validate name")
	}
	if err := k.store.Delete(ctx, name); err != nil && !natsclient.IsKVNotFoundError(err) {
		return errors.WrapTransient(err, "naming.KV", "Unbind", "delete entry")
	}
	return nil
}

func (k *KV) Resolve(ctx context.Context, name string) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, errors.WrapInvalid(err, "naming.KV", "Resolve", "validate name")
	}
	kve, err := k.store.Get(ctx, name)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return Entry{}, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrNotFound, name),
				"naming.KV", "Resolve", "lookup")
		}
		return Entry{}, errors.WrapTransient(err, "naming.KV", "Resolve", "get entry")
	}
	var e Entry
	if err := json.Unmarshal(kve.Value, &e); err != nil {
		return Entry{}, errors.WrapInvalid(err, "naming.KV", "Resolve", "decode entry")
	}
	return e, nil
}

func (k *KV) List(ctx context.Context) ([]string, error) {
	keys, err := k.store.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "naming.KV", "List", "list keys")
	}
	sort.Strings(keys)
	return keys, nil
}
