package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guildgate/internal/config"
	"guildgate/internal/domain"
	"guildgate/internal/queue"
)

type MockVerificationService struct {
	mock.Mock
	order []domain.Snowflake
}

func (m *MockVerificationService) Process(ctx context.Context, req *domain.VerificationRequest) (domain.Outcome, error) {
	m.order = append(m.order, req.UserID)
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

func byUser(id domain.Snowflake) interface{} {
	return mock.MatchedBy(func(req *domain.VerificationRequest) bool { return req.UserID == id })
}

func enqueue(t *testing.T, q queue.Queue, users ...domain.Snowflake) {
	for _, u := range users {
		require.NoError(t, q.Enqueue(context.Background(), &domain.VerificationRequest{
			ID:                "req-" + u.String(),
			UserID:            u,
			TargetCommunityID: "100",
		}))
	}
}

func newRunner(q queue.Queue, svc *MockVerificationService) *JobRunner {
	return NewJobRunner(q, &Services{Verification: svc}, &config.Config{})
}

func TestDrainVerificationQueue_FIFO(t *testing.T) {
	q := queue.NewMemoryQueue()
	svc := new(MockVerificationService)
	svc.On("Process", mock.Anything, mock.Anything).Return(domain.OutcomeVerified, nil)

	enqueue(t, q, "1", "2", "3")
	newRunner(q, svc).DrainVerificationQueue()

	assert.Equal(t, []domain.Snowflake{"1", "2", "3"}, svc.order)
	size, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDrainVerificationQueue_Empty(t *testing.T) {
	svc := new(MockVerificationService)
	newRunner(queue.NewMemoryQueue(), svc).DrainVerificationQueue()
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestDrainVerificationQueue_FailuresAreIsolated(t *testing.T) {
	q := queue.NewMemoryQueue()
	svc := new(MockVerificationService)
	svc.On("Process", mock.Anything, byUser("1")).Return(domain.OutcomeConfigUnavailable, errors.New("store offline"))
	svc.On("Process", mock.Anything, byUser("2")).Run(func(mock.Arguments) { panic("boom") })
	svc.On("Process", mock.Anything, byUser("3")).Return(domain.OutcomeFlagged, nil)

	enqueue(t, q, "1", "2", "3")
	runner := newRunner(q, svc)

	assert.NotPanics(t, runner.DrainVerificationQueue)
	assert.Equal(t, []domain.Snowflake{"1", "2", "3"}, svc.order)
}

func TestDrainVerificationQueue_SkipsCorruptItems(t *testing.T) {
	s := miniredis.RunT(t)
	q, err := queue.NewRedisQueue("redis://"+s.Addr(), "test:verification")
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	enqueue(t, q, "1")
	_, err = s.Push("test:verification", "{broken")
	require.NoError(t, err)
	enqueue(t, q, "2")

	svc := new(MockVerificationService)
	svc.On("Process", mock.Anything, mock.Anything).Return(domain.OutcomeVerified, nil)
	newRunner(q, svc).DrainVerificationQueue()

	assert.Equal(t, []domain.Snowflake{"1", "2"}, svc.order)
}

func TestDrainVerificationQueue_ItemsEnqueuedDuringDrain(t *testing.T) {
	q := queue.NewMemoryQueue()
	svc := new(MockVerificationService)
	svc.On("Process", mock.Anything, byUser("1")).Run(func(mock.Arguments) {
		enqueue(t, q, "2")
	}).Return(domain.OutcomeVerified, nil)
	svc.On("Process", mock.Anything, byUser("2")).Return(domain.OutcomeVerified, nil)

	enqueue(t, q, "1")
	newRunner(q, svc).DrainVerificationQueue()

	assert.Equal(t, []domain.Snowflake{"1", "2"}, svc.order)
}

// serialService records the highest number of overlapping Process calls
type serialService struct {
	mu      sync.Mutex
	order   []domain.Snowflake
	running atomic.Int32
	peak    atomic.Int32
}

func (s *serialService) Process(ctx context.Context, req *domain.VerificationRequest) (domain.Outcome, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.order = append(s.order, req.UserID)
	s.mu.Unlock()
	return domain.OutcomeVerified, nil
}

func TestDrainVerificationQueue_OneConsumerAcrossRunners(t *testing.T) {
	s := miniredis.RunT(t)
	newQueue := func() *queue.RedisQueue {
		q, err := queue.NewRedisQueue("redis://"+s.Addr(), "test:verification")
		require.NoError(t, err)
		t.Cleanup(func() { _ = q.Close() })
		return q
	}
	server, cli := newQueue(), newQueue()

	users := make([]domain.Snowflake, 0, 20)
	for i := 0; i < 20; i++ {
		users = append(users, domain.Snowflake(fmt.Sprintf("%d", 1000+i)))
	}
	enqueue(t, server, users...)

	svc := &serialService{}
	cfg := &config.Config{}
	runners := []*JobRunner{
		NewJobRunner(server, &Services{Verification: svc}, cfg),
		NewJobRunner(cli, &Services{Verification: svc}, cfg),
	}

	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(runner *JobRunner) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				runner.DrainVerificationQueue()
			}
		}(runner)
	}
	wg.Wait()

	assert.Equal(t, int32(1), svc.peak.Load())
	assert.Equal(t, users, svc.order)
	assert.False(t, s.Exists("test:verification:lease"))
}

func TestDrainVerificationQueue_LeaseHeldElsewhere(t *testing.T) {
	q := queue.NewMemoryQueue()
	enqueue(t, q, "1")

	lease, err := q.AcquireLease(context.Background())
	require.NoError(t, err)

	svc := new(MockVerificationService)
	newRunner(q, svc).DrainVerificationQueue()
	svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)

	require.NoError(t, lease.Release(context.Background()))
	svc.On("Process", mock.Anything, mock.Anything).Return(domain.OutcomeVerified, nil)
	newRunner(q, svc).DrainVerificationQueue()
	assert.Equal(t, []domain.Snowflake{"1"}, svc.order)
}
