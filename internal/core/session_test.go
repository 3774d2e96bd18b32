package core

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/procure/internal/frame"
)

func loadedState(t *testing.T) State {
	t.Helper()
	st := newFakeStore()
	s, err := Step(context.Background(), NewState("sess-1", fixedNow), loadCmd(uploadHeader+uploadRow("PO-1", "P1")), testDeps(st))
	require.NoError(t, err)
	s, err = Step(context.Background(), s, Command{Kind: CmdValidateColumns}, testDeps(st))
	require.NoError(t, err)
	s, err = Step(context.Background(), s, Command{Kind: CmdValidateTypes}, testDeps(st))
	require.NoError(t, err)
	return s
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(time.Minute)
	s := loadedState(t)

	require.NoError(t, m.Save(ctx, s))
	got, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Stage, got.Stage)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(20 * time.Millisecond)
	require.NoError(t, m.Save(ctx, NewState("short", fixedNow)))

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 10*time.Millisecond)
	_, err := m.Load(ctx, "short")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_SaveRestartsExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessionStore(80 * time.Millisecond)
	s := NewState("kept", fixedNow)
	require.NoError(t, m.Save(ctx, s))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Save(ctx, s))
	time.Sleep(50 * time.Millisecond)

	_, err := m.Load(ctx, "kept")
	assert.NoError(t, err)
}

func TestMemorySessionStore_RejectsEmptyID(t *testing.T) {
	assert.Error(t, NewMemorySessionStore(0).Save(context.Background(), State{}))
}

// The JSON form must carry the frame with its column kinds so a run can be
// resumed on another instance.
func TestRedisSessionStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping Redis integration test: REDIS_URL not set")
	}
	ctx := context.Background()

	r, err := NewRedisSessionStore(ctx, url, "procure:test:", time.Minute)
	require.NoError(t, err)
	defer r.Close()

	s := loadedState(t)
	require.NoError(t, r.Save(ctx, s))
	defer r.Delete(ctx, s.ID)

	got, err := r.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StageTypesValidated, got.Stage)
	assert.Equal(t, s.Frame.Column(ColQuantity).Kind, got.Frame.Column(ColQuantity).Kind)
	assert.Equal(t, s.Frame.Column(ColOrderDate).Kind, got.Frame.Column(ColOrderDate).Kind)
	require.Equal(t, s.Frame.Len(), got.Frame.Len())
	for _, name := range s.Frame.Columns() {
		assert.Equal(t, frame.AsString(s.Frame.Value(name, 0)), frame.AsString(got.Frame.Value(name, 0)), name)
	}

	require.NoError(t, r.Delete(ctx, s.ID))
	_, err = r.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNewRedisSessionStore_BadURL(t *testing.T) {
	_, err := NewRedisSessionStore(context.Background(), "not-a-url", "p:", time.Minute)
	assert.ErrorContains(t, err, "parse redis url")
}

func TestRedisSessionStore_Key(t *testing.T) {
	r := NewRedisSessionStoreFromClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "procure:session:", 0)
	defer r.Close()
	assert.Equal(t, "procure:session:abc", r.key("abc"))
	assert.Equal(t, DefaultSessionTTL, r.ttl)
}
