package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceiveReturnsValue(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 1)
	ch <- 7
	assert.Equal(t, 7, Receive(t, ch, ShortTestTimeout, "value not received"))

	done := make(chan struct{})
	close(done)
	WaitForChannel(t, done, ShortTestTimeout, "channel not closed")
}
