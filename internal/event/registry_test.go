package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannel_OneShot(t *testing.T) {
	tx, rx := NewChannel(1)

	_, ok := rx.TryRecv()
	assert.False(t, ok)

	require.NoError(t, tx.Send(Notification{Registry: "r", Seq: 1}))
	require.NoError(t, tx.Send(Notification{Registry: "r", Seq: 2}), "full buffer coalesces")

	n, ok := rx.TryRecv()
	require.True(t, ok)
	assert.Equal(t, int64(1), n.Seq)

	_, ok = rx.TryRecv()
	assert.False(t, ok)
}

func TestReceiver_DropAndDrain(t *testing.T) {
	tx, rx := NewChannel(4)
	require.NoError(t, tx.Send(Notification{Seq: 1}))
	require.NoError(t, tx.Send(Notification{Seq: 2}))
	assert.Equal(t, 2, rx.Drain())
	assert.Equal(t, 0, rx.Drain())

	rx.Drop()
	assert.ErrorIs(t, tx.Send(Notification{Seq: 3}), ErrReceiverDropped)
}

func TestRegistry_SubscribeNotify(t *testing.T) {
	r := NewRegistry(CommandEffectCompleted)
	assert.Equal(t, "command-effect-completed", r.Name())

	tx1, rx1 := NewChannel(1)
	tx2, rx2 := NewChannel(1)
	id1, id2 := uuid.New(), uuid.New()
	require.NoError(t, r.Subscribe(id1, tx1))
	require.NoError(t, r.Subscribe(id2, tx2))
	assert.Error(t, r.Subscribe(id1, tx1), "duplicate id")
	assert.Error(t, r.Subscribe(uuid.New(), nil))
	assert.Equal(t, 2, r.Len())

	n, delivered := r.Notify()
	assert.Equal(t, 2, delivered)
	assert.Equal(t, Notification{Registry: CommandEffectCompleted, Seq: 1}, n)

	got, ok := rx1.TryRecv()
	require.True(t, ok)
	assert.Equal(t, n, got)
	got, ok = rx2.TryRecv()
	require.True(t, ok)
	assert.Equal(t, n, got)

	assert.True(t, r.Unsubscribe(id1))
	assert.False(t, r.Unsubscribe(id1))

	_, delivered = r.Notify()
	assert.Equal(t, 1, delivered)
	_, ok = rx1.TryRecv()
	assert.False(t, ok, "unsubscribed receiver gets nothing")
}

func TestRegistry_DroppedReceiverDoesNotAbortDelivery(t *testing.T) {
	r := NewRegistry("effects")

	receivers := make([]*Receiver, 3)
	for i := range receivers {
		tx, rx := NewChannel(1)
		receivers[i] = rx
		require.NoError(t, r.Subscribe(uuid.New(), tx))
	}
	receivers[0].Drop()

	_, delivered := r.Notify()
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 2, r.Len(), "dropped subscriber pruned")

	for _, rx := range receivers[1:] {
		_, ok := rx.TryRecv()
		assert.True(t, ok)
	}
}

func TestRegistry_SharedClock(t *testing.T) {
	clock := NewClock()
	a := NewRegistry("a", WithClock(clock))
	b := NewRegistry("b", WithClock(clock))

	n1, _ := a.Notify()
	n2, _ := b.Notify()
	n3, _ := a.Notify()
	assert.Equal(t, []int64{1, 2, 3}, []int64{n1.Seq, n2.Seq, n3.Seq})
}
