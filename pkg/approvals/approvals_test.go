package approvals

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	q := NewQueue()

	req, err := q.Create("need github token for deploy skill", "GITHUB_TOKEN", TypeCredential)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, StatusPending, req.Status)
	assert.False(t, req.CreatedAt.IsZero())

	got, err := q.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "GITHUB_TOKEN", got.Needs)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	q := NewQueue()
	_, err := q.Create("r", "n", RequestType("escalation"))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestGetUnknownID(t *testing.T) {
	q := NewQueue()
	_, err := q.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveOnce(t *testing.T) {
	q := NewQueue()
	req, err := q.Create("r", "n", TypePermission)
	require.NoError(t, err)

	resolved, err := q.Resolve(req.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Equal(t, "approved", resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = q.Resolve(req.ID, "denied")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// The stored resolution is untouched by the losing attempt.
	got, err := q.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", got.Resolution)
}

func TestResolveUnknownID(t *testing.T) {
	q := NewQueue()
	_, err := q.Resolve("missing", "approved")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentResolveFirstWins(t *testing.T) {
	q := NewQueue()
	req, err := q.Create("r", "n", TypeNotification)
	require.NoError(t, err)

	const resolvers = 16
	var wins, rejections atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Resolve(req.ID, "ok"); err == nil {
				wins.Add(1)
			} else {
				rejections.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(resolvers-1), rejections.Load())
}

func TestPending(t *testing.T) {
	q := NewQueue()
	a, _ := q.Create("a", "n", TypeCredential)
	b, _ := q.Create("b", "n", TypeCredential)

	_, err := q.Resolve(a.ID, "done")
	require.NoError(t, err)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestCallersCannotMutateQueueState(t *testing.T) {
	q := NewQueue()
	req, _ := q.Create("r", "n", TypeCredential)

	req.Status = StatusResolved
	got, err := q.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}
