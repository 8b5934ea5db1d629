package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stemsi/tryout-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
)

var fast = Policy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}

func TestDo(t *testing.T) {
	transient := apperror.Unavailable(errors.New("connection reset"))
	guard := apperror.Guard("SECTION_ALREADY_SUBMITTED", "already submitted")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"succeeds first time", []error{nil}, 1, nil},
		{"recovers from transient failure", []error{transient, transient, nil}, 3, nil},
		{"gives up after attempts", []error{transient, transient, transient, nil}, 3, apperror.ErrUnavailable},
		{"does not retry guard violations", []error{guard, nil}, 1, apperror.ErrGuardViolation},
		{"does not retry plain errors", []error{errors.New("boom"), nil}, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fast, func(context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errs[tt.wantCalls-1] != nil:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Base: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return apperror.Unavailable(errors.New("down"))
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestBackoff(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Max: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.backoff(2))
}
