package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func quietLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

func TestDelay(t *testing.T) {
	base := time.Second
	assert.Equal(t, 1*time.Second, Delay(base, 1))
	assert.Equal(t, 2*time.Second, Delay(base, 2))
	assert.Equal(t, 4*time.Second, Delay(base, 3))
	assert.Equal(t, 1*time.Second, Delay(base, 0))
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	for k := 0; k < 3; k++ {
		rec := &sleepRecorder{}
		calls := 0

		got, err := Do(context.Background(), func(ctx context.Context) (string, error) {
			calls++
			if calls <= k {
				return "", errors.New("transient")
			}
			return "ok", nil
		}, WithMaxAttempts(3), WithBaseDelay(100*time.Millisecond), WithSleep(rec.sleep), WithLogger(quietLogger()))

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, k+1, calls)

		var want []time.Duration
		for attempt := 1; attempt <= k; attempt++ {
			want = append(want, Delay(100*time.Millisecond, attempt))
		}
		assert.Equal(t, want, rec.delays)
	}
}

func TestDo_ReturnsLastErrorUnchanged(t *testing.T) {
	rec := &sleepRecorder{}
	errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	calls := 0

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		e := errs[calls]
		calls++
		return 0, e
	}, WithSleep(rec.sleep), WithLogger(quietLogger()))

	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.True(t, err == errs[2], "expected the identical error value")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestDo_LogsEachFailedAttempt(t *testing.T) {
	l, hook := test.NewNullLogger()
	rec := &sleepRecorder{}

	_, _ = Do(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	}, WithSleep(rec.sleep), WithLogger(l), WithMaxAttempts(2))

	require.Len(t, hook.AllEntries(), 2)
	first := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, first.Level)
	assert.Equal(t, 1, first.Data["attempt"])
	assert.Equal(t, time.Second, first.Data["delay"])
	assert.Equal(t, 2, hook.LastEntry().Data["attempt"])
}

func TestDo_OnRetryHook(t *testing.T) {
	rec := &sleepRecorder{}
	var attempts []int

	_, _ = Do(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	}, WithSleep(rec.sleep), WithLogger(quietLogger()), WithOnRetry(func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}))

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_PanicIsCoerced(t *testing.T) {
	rec := &sleepRecorder{}

	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		panic("not an error")
	}, WithSleep(rec.sleep), WithLogger(quietLogger()), WithMaxAttempts(1))

	require.Error(t, err)
	assert.Equal(t, "not an error", err.Error())

	sentinel := errors.New("sentinel")
	_, err = Do(context.Background(), func(ctx context.Context) (int, error) {
		panic(sentinel)
	}, WithSleep(rec.sleep), WithLogger(quietLogger()), WithMaxAttempts(1))
	assert.True(t, err == sentinel)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	}, WithBaseDelay(time.Hour), WithLogger(quietLogger()))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		t.Fatal("operation must not run")
		return 0, nil
	}, WithLogger(quietLogger()))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_MinimumOneAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, WithMaxAttempts(0), WithLogger(quietLogger()))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
