package chartsync

import (
	"github.com/golang/glog"
)

// handleTableUpdate applies one table update event to the document:
// update the accumulator, extract each bound column's current values, and
// fan the identical extracted array out to every destination bound to that
// column. Destinations within a column are written in declared order.
// After all columns are applied, observers are notified with the full
// current data region if the model is listening.
//
// Events that arrive without an accumulator or bindings for their table
// raced a re-initialization and are dropped. This path never raises.
func (self *ChartModel) handleTableUpdate(table Table, update *TableUpdate) {
	var event *ChartEvent

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		listener, ok := self.listeners[table]
		if !ok {
			glog.V(2).Infof("[sync]drop update for %s: no listener\n", table.Name())
			return
		}
		columnBindings, ok := self.bindings[table]
		if !ok {
			glog.V(2).Infof("[sync]drop update for %s: no bindings\n", table.Name())
			return
		}

		listener.accumulator.Apply(update)

		for column, refs := range columnBindings {
			values, ok := listener.accumulator.Values(column, self.settings.Unwrap)
			if !ok {
				// column not on the table. skip the destinations for
				// this update.
				continue
			}
			valueNode := NewValueArray(values)
			for _, ref := range refs {
				slot, ok := ref.Resolve(self.document.Root())
				if !ok {
					glog.Infof("[sync]%s/%s destination %s does not resolve, skipping\n", table.Name(), column, ref)
					continue
				}
				slot.Set(valueNode)
			}
		}

		if self.listening {
			event = &ChartEvent{
				Data: self.document.Data(),
			}
		}
	}()

	if event != nil {
		for _, eventCallback := range self.eventCallbacks.Get() {
			eventCallback(event)
		}
	}
}
