// Package catalog keeps a locally cached, searchable clinic list consistent
// with push notifications of newly added clinics. Staleness is acceptable;
// a crashed view is not, so malformed payloads are dropped, not surfaced.
package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
	"github.com/serhatkrkmz54/eklinik-v2/internal/push"
	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

// SyncChannel merges pushed clinic records into the base catalog list. The
// displayed list is always the active query applied over the base list, so
// merges never clobber an in-progress search.
type SyncChannel struct {
	subscriber push.Subscriber
	topic      string
	logger     *logging.Logger

	mu      sync.Mutex
	base    []api.ClinicSummary
	query   string
	sub     push.Subscription
	onMerge func(api.ClinicSummary)

	wg sync.WaitGroup
}

// NewSyncChannel creates a channel for the given topic. It is inert until
// Activate.
func NewSyncChannel(subscriber push.Subscriber, topic string, logger *logging.Logger) *SyncChannel {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncChannel{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger,
	}
}

// OnMerge registers a callback invoked after each successful merge, so the
// host can re-render its list. Call it before Activate.
func (c *SyncChannel) OnMerge(fn func(api.ClinicSummary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMerge = fn
}

// SetBase replaces the base list, normally with the initial REST fetch.
func (c *SyncChannel) SetBase(clinics []api.ClinicSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = append([]api.ClinicSummary(nil), clinics...)
	c.sortBaseLocked()
}

// Activate subscribes to the topic and starts merging inbound records in
// arrival order. Deactivate or ctx cancellation stops the merge loop.
func (c *SyncChannel) Activate(ctx context.Context) error {
	sub, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for payload := range sub.Messages() {
			c.merge(payload)
		}
	}()
	return nil
}

// Deactivate unsubscribes and waits for the merge loop to drain. No merges
// happen after it returns.
func (c *SyncChannel) Deactivate() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	c.wg.Wait()
}

// SetQuery updates the active search query; Displayed reflects it.
func (c *SyncChannel) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = strings.TrimSpace(query)
}

// Base returns a copy of the unfiltered catalog.
func (c *SyncChannel) Base() []api.ClinicSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.ClinicSummary(nil), c.base...)
}

// Displayed returns the base list filtered by the active query.
func (c *SyncChannel) Displayed() []api.ClinicSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.query == "" {
		return append([]api.ClinicSummary(nil), c.base...)
	}
	needle := strings.ToLower(c.query)
	out := make([]api.ClinicSummary, 0, len(c.base))
	for _, clinic := range c.base {
		if strings.Contains(strings.ToLower(clinic.Name), needle) {
			out = append(out, clinic)
		}
	}
	return out
}

func (c *SyncChannel) merge(payload []byte) {
	var clinic api.ClinicSummary
	if err := json.Unmarshal(payload, &clinic); err != nil {
		c.logger.Warn("catalog: dropping malformed push payload", "error", err)
		return
	}
	if clinic.ID == 0 || clinic.Name == "" {
		c.logger.Warn("catalog: dropping incomplete push record", "id", clinic.ID)
		return
	}

	c.mu.Lock()
	// De-dup against the base (unfiltered) list, never the displayed one.
	for _, existing := range c.base {
		if existing.ID == clinic.ID {
			c.mu.Unlock()
			return
		}
	}
	c.base = append(c.base, clinic)
	c.sortBaseLocked()
	onMerge := c.onMerge
	c.mu.Unlock()

	c.logger.Info("catalog: merged new clinic", "id", clinic.ID, "name", clinic.Name)
	if onMerge != nil {
		onMerge(clinic)
	}
}

// sortBaseLocked must be called with c.mu held.
func (c *SyncChannel) sortBaseLocked() {
	sort.Slice(c.base, func(i, j int) bool {
		return c.base[i].Name < c.base[j].Name
	})
}
