package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	arenaBucket  = "survivor_arenas"
	actionBucket = "survivor_actions"
)

// NATSStore is a SessionStore on JetStream key-value buckets. The bucket TTL
// provides record expiry and action retention; KV revisions provide the CAS.
type NATSStore struct {
	nc      *nats.Conn
	arenas  jetstream.KeyValue
	actions jetstream.KeyValue
	owned   bool
}

// NewNATSStore opens (or creates) the buckets on an existing connection
func NewNATSStore(ctx context.Context, nc *nats.Conn, recordTTL, actionTTL time.Duration) (*NATSStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	arenas, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  arenaBucket,
		History: 1,
		TTL:     recordTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("arena bucket: %w", err)
	}
	actions, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  actionBucket,
		History: 1,
		TTL:     actionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("action bucket: %w", err)
	}
	return &NATSStore{nc: nc, arenas: arenas, actions: actions}, nil
}

// DialNATSStore connects to url and opens the store; Close drains the connection
func DialNATSStore(ctx context.Context, url string, recordTTL, actionTTL time.Duration, opts ...nats.Option) (*NATSStore, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	s, err := NewNATSStore(ctx, nc, recordTTL, actionTTL)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// StartEmbeddedNATS runs an in-process JetStream server storing under dir
func StartEmbeddedNATS(dir string) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		JetStream:  true,
		StoreDir:   dir,
		DontListen: true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("nats server: %w", err)
	}
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server not ready")
	}
	return ns, nil
}

func arenaKey(arenaID string) string {
	return "arena." + hex.EncodeToString([]byte(arenaID))
}

func actionPrefix(arenaID string) string {
	return "actions." + hex.EncodeToString([]byte(arenaID))
}

func (s *NATSStore) Load(ctx context.Context, arenaID string) (*ArenaRecord, uint64, error) {
	entry, err := s.arenas.Get(ctx, arenaKey(arenaID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, 0, fmt.Errorf("%w: arena %s", ErrNotFound, arenaID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: load arena %s: %v", ErrStore, arenaID, err)
	}
	var rec ArenaRecord
	if err := msgpack.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, 0, fmt.Errorf("%w: decode arena %s: %v", ErrStore, arenaID, err)
	}
	return &rec, entry.Revision(), nil
}

func (s *NATSStore) Save(ctx context.Context, arenaID string, rec *ArenaRecord, rev uint64) (uint64, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: encode arena %s: %v", ErrStore, arenaID, err)
	}
	key := arenaKey(arenaID)
	var next uint64
	if rev == 0 {
		next, err = s.arenas.Create(ctx, key, data)
	} else {
		next, err = s.arenas.Update(ctx, key, data, rev)
	}
	if err == nil {
		return next, nil
	}
	if isRevisionConflict(err) {
		return 0, fmt.Errorf("%w: arena %s changed", ErrConflict, arenaID)
	}
	return 0, fmt.Errorf("%w: save arena %s: %v", ErrStore, arenaID, err)
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *NATSStore) Delete(ctx context.Context, arenaID string) error {
	if err := s.arenas.Purge(ctx, arenaKey(arenaID)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("%w: delete arena %s: %v", ErrStore, arenaID, err)
	}
	entries, err := s.scan(ctx, actionPrefix(arenaID)+".>", jetstream.MetaOnly())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.actions.Purge(ctx, e.Key()); err != nil {
			log.Warn("purge action failed", "key", e.Key(), "err", err)
		}
	}
	return nil
}

func (s *NATSStore) AppendAction(ctx context.Context, arenaID string, action GameAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	data, err := msgpack.Marshal(action)
	if err != nil {
		return fmt.Errorf("%w: encode action: %v", ErrStore, err)
	}
	key := fmt.Sprintf("%s.%d.%s", actionPrefix(arenaID), action.Timestamp, action.ID)
	if _, err := s.actions.Put(ctx, key, data); err != nil {
		return fmt.Errorf("%w: append action: %v", ErrStore, err)
	}
	return nil
}

func (s *NATSStore) Actions(ctx context.Context, arenaID string, since int64) ([]GameAction, error) {
	entries, err := s.scan(ctx, actionPrefix(arenaID)+".>")
	if err != nil {
		return nil, err
	}
	out := make([]GameAction, 0, len(entries))
	for _, e := range entries {
		var a GameAction
		if err := msgpack.Unmarshal(e.Value(), &a); err != nil {
			log.Warn("skipping undecodable action", "key", e.Key(), "err", err)
			continue
		}
		if a.Timestamp > since {
			out = append(out, a)
		}
	}
	sortActions(out)
	return out, nil
}

// scan returns the current entries matching filter. The watcher delivers the
// existing values followed by a nil marker.
func (s *NATSStore) scan(ctx context.Context, filter string, opts ...jetstream.WatchOpt) ([]jetstream.KeyValueEntry, error) {
	opts = append(opts, jetstream.IgnoreDeletes())
	w, err := s.actions.Watch(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: watch %s: %v", ErrStore, filter, err)
	}
	defer w.Stop()

	var entries []jetstream.KeyValueEntry
	for {
		select {
		case e, ok := <-w.Updates():
			if !ok || e == nil {
				return entries, nil
			}
			entries = append(entries, e)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: watch %s: %v", ErrStore, filter, ctx.Err())
		}
	}
}

func (s *NATSStore) Close() error {
	if s.owned {
		return s.nc.Drain()
	}
	return nil
}
