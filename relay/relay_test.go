// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rift-labs/riftvm/kernel"
	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

type recordingSink struct {
	delivered []*kernel.OutboxMessage
	failAfter int
}

func (s *recordingSink) Deliver(msg *kernel.OutboxMessage) error {
	if s.failAfter > 0 && len(s.delivered) >= s.failAfter {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func testLog(t *testing.T) log15.Logger {
	log := log15.New("test", t.Name())
	log.SetHandler(log15.DiscardHandler())
	return log
}

func queueWithdrawals(t *testing.T, store *storage.Store, outbox *kernel.Outbox, n int) {
	t.Helper()
	key, err := keys.GenerateKey()
	require.NoError(t, err)
	from := keys.UserAddress(&key.PublicKey)

	tx := store.Begin()
	for i := 0; i < n; i++ {
		require.NoError(t, outbox.Append(tx, 1, &kernel.Withdrawal{
			From:   from,
			Target: []byte{byte(i)},
			Amount: uint64(i + 1),
		}))
	}
	require.NoError(t, tx.Commit())
}

func TestDrainDeliversInOrder(t *testing.T) {
	assert := assert.New(t)
	store := storage.New(memdb.New())
	outbox := kernel.NewOutbox(store)
	queueWithdrawals(t, store, outbox, 3)

	sink := &recordingSink{}
	r := New(outbox, sink, testLog(t))
	require.NoError(t, r.Drain())

	require.Len(t, sink.delivered, 3)
	for i, msg := range sink.delivered {
		assert.Equal(uint64(i), msg.Seq)
	}

	pending, err := outbox.Pending()
	require.NoError(t, err)
	assert.Empty(pending)

	// Nothing left: a second drain is a no-op.
	require.NoError(t, r.Drain())
	assert.Len(sink.delivered, 3)
}

func TestFailedDrainRetriesFromCursor(t *testing.T) {
	assert := assert.New(t)
	store := storage.New(memdb.New())
	outbox := kernel.NewOutbox(store)
	queueWithdrawals(t, store, outbox, 3)

	sink := &recordingSink{failAfter: 1}
	r := New(outbox, sink, testLog(t))
	assert.Error(r.Drain())

	// The cursor did not move; recovery re-delivers everything,
	// including the message that already went out.
	sink.failAfter = 0
	require.NoError(t, r.Drain())
	require.Len(t, sink.delivered, 4)
	assert.Equal(uint64(0), sink.delivered[0].Seq)
	assert.Equal(uint64(0), sink.delivered[1].Seq)
	assert.Equal(uint64(2), sink.delivered[3].Seq)
}

func TestFileSink(t *testing.T) {
	assert := assert.New(t)
	store := storage.New(memdb.New())
	outbox := kernel.NewOutbox(store)
	queueWithdrawals(t, store, outbox, 2)

	path := filepath.Join(t.TempDir(), "outbox.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, New(outbox, sink, testLog(t)).Drain())
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(strings.HasPrefix(lines[0], "0 0x"))
	assert.True(strings.HasPrefix(lines[1], "1 0x"))
}
