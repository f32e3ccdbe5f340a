package watering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

type scheduledCall struct {
	unitID int64
	amount int64
}

type fakeTasks struct {
	mu    sync.Mutex
	calls []scheduledCall
}

func (f *fakeTasks) Poll(context.Context, string, string) (*model.WateringTask, error) {
	return nil, errs.ErrNoTaskAvailable
}

func (f *fakeTasks) Acknowledge(context.Context, string, string, int64) error { return nil }

func (f *fakeTasks) ScheduleWatering(_ context.Context, unit *model.Unit, amount int64) (*model.WateringTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduledCall{unitID: unit.ID, amount: amount})
	return &model.WateringTask{ID: 1, UnitID: unit.ID, Amount: amount, Status: model.TaskPendingAuthorized}, nil
}

func (f *fakeTasks) Authorize(context.Context, int64) error { return nil }

func (f *fakeTasks) scheduled() []scheduledCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduledCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeMeasurements struct {
	latest *model.Measurement
	err    error
}

func (f *fakeMeasurements) Insert(context.Context, *model.Measurement) error { return nil }

func (f *fakeMeasurements) LatestForUnit(context.Context, int64) (*model.Measurement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.latest, nil
}

func fp(v float64) *float64 { return &v }

func TestPlanner_SchedulesOnDeficit(t *testing.T) {
	tasks := &fakeTasks{}
	measurements := &fakeMeasurements{latest: &model.Measurement{UnitID: 7, GroundHumidity: fp(40)}}
	p := New(tasks, measurements, zap.NewNop(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(model.Unit{ID: 7, UnattendedWatering: true})

	require.Eventually(t, func() bool { return len(tasks.scheduled()) == 1 },
		time.Second, 5*time.Millisecond)
	call := tasks.scheduled()[0]
	require.Equal(t, int64(7), call.unitID)
	// deficit 20% at 15 ml per percent
	require.Equal(t, int64(300), call.amount)
}

func TestPlanner_NoTaskWhenWetEnough(t *testing.T) {
	tasks := &fakeTasks{}
	measurements := &fakeMeasurements{latest: &model.Measurement{UnitID: 7, GroundHumidity: fp(75)}}
	p := New(tasks, measurements, zap.NewNop(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(model.Unit{ID: 7})
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tasks.scheduled())
}

func TestPlanner_SkipsReadingWithoutGroundHumidity(t *testing.T) {
	tasks := &fakeTasks{}
	measurements := &fakeMeasurements{latest: &model.Measurement{UnitID: 7, Temperature: fp(21)}}
	p := New(tasks, measurements, zap.NewNop(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(model.Unit{ID: 7})
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tasks.scheduled())
}

func TestPlanner_NoReadingsYet(t *testing.T) {
	tasks := &fakeTasks{}
	measurements := &fakeMeasurements{err: errs.ErrNotFound}
	p := New(tasks, measurements, zap.NewNop(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Notify(model.Unit{ID: 7})
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tasks.scheduled())
}

func TestPlanner_NotifyNeverBlocks(t *testing.T) {
	tasks := &fakeTasks{}
	measurements := &fakeMeasurements{err: errs.ErrNotFound}
	p := New(tasks, measurements, zap.NewNop(), 1)

	// no consumer running; the queue fills and further notifies drop
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Notify(model.Unit{ID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}
