package chartsync

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestCallbackList(t *testing.T) {
	callbacks := NewCallbackList[func() int]()

	aId := callbacks.Add(func() int { return 1 })
	bId := callbacks.Add(func() int { return 2 })
	assert.Equal(t, 2, callbacks.Len())

	// in add order
	values := []int{}
	for _, callback := range callbacks.Get() {
		values = append(values, callback())
	}
	assert.Equal(t, []int{1, 2}, values)

	callbacks.Remove(aId)
	assert.Equal(t, 1, callbacks.Len())
	assert.Equal(t, 2, callbacks.Get()[0]())

	// removing twice is a no-op
	callbacks.Remove(aId)
	assert.Equal(t, 1, callbacks.Len())

	callbacks.Remove(bId)
	assert.Equal(t, 0, callbacks.Len())
}
