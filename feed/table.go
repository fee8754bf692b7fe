package feed

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"

	"github.com/chartfeed/chartsync"
)

// FeedTable is one declared table on the feed, implementing
// chartsync.Table. Instances are created and owned by the FeedClient.
type FeedTable struct {
	client *FeedClient
	name   string

	mutex   sync.Mutex
	columns []string
}

func newFeedTable(client *FeedClient, name string, columns []string) *FeedTable {
	return &FeedTable{
		client:  client,
		name:    name,
		columns: columns,
	}
}

func (self *FeedTable) Name() string {
	return self.name
}

func (self *FeedTable) Columns() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return slices.Clone(self.columns)
}

func (self *FeedTable) setColumns(columns []string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.columns = columns
}

func (self *FeedTable) Subscribe(ctx context.Context, columns []string) (chartsync.TableSubscription, error) {
	subscription := &feedSubscription{
		client:          self.client,
		subscriptionId:  chartsync.NewId(),
		tableName:       self.name,
		columns:         slices.Clone(columns),
		updateCallbacks: chartsync.NewCallbackList[chartsync.TableUpdateFunction](),
	}

	// register before the request so an update delivered immediately after
	// the ack is not dropped
	client := self.client
	client.stateLock.Lock()
	client.subscriptions[subscription.subscriptionId.String()] = subscription
	client.stateLock.Unlock()

	_, err := client.request(ctx, map[string]any{
		"type":            "subscribe",
		"subscription_id": subscription.subscriptionId.String(),
		"table":           self.name,
		"columns":         subscription.columns,
	})
	if err != nil {
		client.stateLock.Lock()
		delete(client.subscriptions, subscription.subscriptionId.String())
		client.stateLock.Unlock()
		return nil, err
	}
	return subscription, nil
}

type feedSubscription struct {
	client          *FeedClient
	subscriptionId  chartsync.Id
	tableName       string
	columns         []string
	updateCallbacks *chartsync.CallbackList[chartsync.TableUpdateFunction]
}

func (self *feedSubscription) AddUpdateCallback(updateCallback chartsync.TableUpdateFunction) func() {
	callbackId := self.updateCallbacks.Add(updateCallback)
	return func() {
		self.updateCallbacks.Remove(callbackId)
	}
}

func (self *feedSubscription) Close() {
	client := self.client
	client.stateLock.Lock()
	_, open := client.subscriptions[self.subscriptionId.String()]
	delete(client.subscriptions, self.subscriptionId.String())
	client.stateLock.Unlock()
	if !open {
		return
	}

	requestCtx, requestCancel := context.WithTimeout(client.ctx, client.settings.RequestTimeout)
	defer requestCancel()
	_, err := client.request(requestCtx, map[string]any{
		"type":            "unsubscribe",
		"subscription_id": self.subscriptionId.String(),
	})
	if err != nil {
		// best effort. the service drops orphaned subscriptions with the
		// connection.
		glog.V(2).Infof("[feed]unsubscribe %s: %v\n", self.tableName, err)
	}
}
