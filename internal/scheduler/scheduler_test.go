package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/service"
)

type fakeComparer struct {
	mu     sync.Mutex
	result *model.DiffResult
	err    error
	calls  int
	files  map[string]string
}

func (f *fakeComparer) Compare(ctx context.Context, req service.CompareRequest) (*model.DiffResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *fakeComparer) SaveSQLFile(path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[path] = content
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func drift() *model.DiffResult {
	return &model.DiffResult{
		Items:        []model.DiffItem{{ID: "1", DiffType: model.TableRemoved, TableName: "old", SQL: "DROP TABLE `old`;", Selected: true}},
		SourceTables: 1,
		TargetTables: 2,
	}
}

func TestRunNowDrift(t *testing.T) {
	cmp := &fakeComparer{result: drift()}
	s := New(cmp, quiet(), time.Minute)

	var got []Report
	s.OnReport = func(r Report) { got = append(got, r) }

	w := Watch{Name: "nightly", Request: service.CompareRequest{SourceID: "a", TargetID: "b"}, Out: "/tmp/drift.sql"}
	rep := s.RunNow(context.Background(), w)

	assert.True(t, rep.Drifted())
	assert.Equal(t, 1, rep.Items)
	assert.Equal(t, "DROP TABLE `old`;\n", cmp.files["/tmp/drift.sql"])
	require.Len(t, got, 1)

	last, ok := s.Last("nightly")
	require.True(t, ok)
	assert.Equal(t, rep, last)
}

func TestRunNowNoDriftAndFailure(t *testing.T) {
	cmp := &fakeComparer{result: &model.DiffResult{Items: []model.DiffItem{}}}
	s := New(cmp, quiet(), 0)

	rep := s.RunNow(context.Background(), Watch{Name: "w", Out: "/tmp/never.sql"})
	assert.False(t, rep.Drifted())
	assert.NoError(t, rep.Err)
	assert.Empty(t, cmp.files)

	cmp.err = errors.New("unreachable")
	rep = s.RunNow(context.Background(), Watch{Name: "w"})
	assert.False(t, rep.Drifted())
	assert.EqualError(t, rep.Err, "unreachable")
}

func TestAdd(t *testing.T) {
	s := New(&fakeComparer{}, quiet(), 0)

	require.NoError(t, s.Add(Watch{Name: "hourly", Schedule: "@every 1h"}))
	assert.Error(t, s.Add(Watch{Name: "hourly", Schedule: "@every 1h"}), "duplicate name")
	assert.Error(t, s.Add(Watch{Name: "bad", Schedule: "not a schedule"}))

	require.NoError(t, s.Add(Watch{Schedule: "0 3 * * *", Request: service.CompareRequest{SourceID: "a", TargetID: "b"}}))
	assert.True(t, s.Next("a->b").IsZero(), "not started yet")

	s.Start()
	defer s.Stop()
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next("hourly"), time.Minute)
	assert.True(t, s.Next("unknown").IsZero())
}

func TestScheduledRunFires(t *testing.T) {
	cmp := &fakeComparer{result: drift()}
	s := New(cmp, quiet(), 0)
	done := make(chan Report, 1)
	s.OnReport = func(r Report) {
		select {
		case done <- r:
		default:
		}
	}

	require.NoError(t, s.Add(Watch{Name: "fast", Schedule: "@every 1s"}))
	s.Start()
	defer s.Stop()

	select {
	case r := <-done:
		assert.Equal(t, "fast", r.Watch)
	case <-time.After(5 * time.Second):
		t.Fatal("watch never ran")
	}
}

func TestWatchLabel(t *testing.T) {
	w := Watch{Request: service.CompareRequest{SourceID: "dev", TargetID: "prod"}}
	assert.Equal(t, "dev->prod", w.Label())

	w.Name = "nightly"
	assert.Equal(t, "nightly", w.Label())
}
