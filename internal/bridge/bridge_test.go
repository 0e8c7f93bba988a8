package bridge_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-songrequest/internal/bridge"
	"ms-songrequest/internal/logger"

	"github.com/stretchr/testify/assert"
)

func newBridge() *bridge.Bridge {
	return bridge.New(logger.NewLogger())
}

func TestResolveDeliversData(t *testing.T) {
	b := newBridge()
	id, outcome := b.Open()

	payload := json.RawMessage(`{"users":[]}`)
	err := b.Resolve(id, payload)
	assert.NoError(t, err)

	select {
	case result := <-outcome:
		assert.NoError(t, result.Err)
		assert.JSONEq(t, `{"users":[]}`, string(result.Data))
	case <-time.After(time.Second):
		t.Fatal("outcome never arrived")
	}

	assert.Equal(t, 0, b.PendingCount())
}

func TestRejectDeliversError(t *testing.T) {
	b := newBridge()
	id, outcome := b.Open()

	cause := errors.New("worker unavailable")
	err := b.Reject(id, cause)
	assert.NoError(t, err)

	result := <-outcome
	assert.Equal(t, cause, result.Err)
	assert.Nil(t, result.Data)
}

func TestFirstSettleWins(t *testing.T) {
	b := newBridge()
	id, outcome := b.Open()

	assert.NoError(t, b.Resolve(id, json.RawMessage(`1`)))
	assert.ErrorIs(t, b.Resolve(id, json.RawMessage(`2`)), bridge.ErrTicketNotFound)
	assert.ErrorIs(t, b.Reject(id, errors.New("late")), bridge.ErrTicketNotFound)

	result := <-outcome
	assert.JSONEq(t, `1`, string(result.Data))
}

func TestUnknownIDIsIgnoredNoOp(t *testing.T) {
	b := newBridge()
	assert.ErrorIs(t, b.Resolve("never-issued", nil), bridge.ErrTicketNotFound)
	assert.ErrorIs(t, b.Reject("never-issued", errors.New("x")), bridge.ErrTicketNotFound)
}

func TestAbandonMakesLateAnswerANoOp(t *testing.T) {
	b := newBridge()
	id, _ := b.Open()

	b.Abandon(id)
	assert.Equal(t, 0, b.PendingCount())

	// The late answer after the caller gave up must not block or panic.
	assert.ErrorIs(t, b.Resolve(id, json.RawMessage(`{}`)), bridge.ErrTicketNotFound)
}

func TestUnresolvedTicketStaysPending(t *testing.T) {
	b := newBridge()
	id, outcome := b.Open()

	// The bridge has no timeout of its own.
	select {
	case <-outcome:
		t.Fatal("outcome arrived without a settle")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, b.PendingCount())

	assert.NoError(t, b.Resolve(id, nil))
}

func TestConcurrentSettlersExactlyOneWins(t *testing.T) {
	b := newBridge()
	id, outcome := b.Open()

	const settlers = 8
	var wg sync.WaitGroup
	errs := make(chan error, settlers)

	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Resolve(id, json.RawMessage(`{}`))
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, bridge.ErrTicketNotFound)
		}
	}
	assert.Equal(t, 1, wins)

	<-outcome
	assert.Equal(t, 0, b.PendingCount())
}
