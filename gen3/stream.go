package gen3

import (
	"context"

	"google.golang.org/grpc"

	"github.com/spanpanel/spanpanel-go/gen3/wire"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
)

// registeredCallback pairs a callback with a unique id so it can be
// unregistered later; Go function values are not comparable, so identity
// cannot be tested directly.
type registeredCallback struct {
	id int
	fn Callback
}

// RegisterCallback registers cb to be invoked once after every successfully
// decoded streaming notification. The returned function unregisters cb
// (spec §4.8.5).
func (c *Client) RegisterCallback(cb Callback) func() {
	c.callbacksMu.Lock()
	c.callbackSeq++
	id := c.callbackSeq
	c.callbacks = append(c.callbacks, registeredCallback{id: id, fn: cb})
	c.callbacksMu.Unlock()

	return func() {
		c.callbacksMu.Lock()
		defer c.callbacksMu.Unlock()
		filtered := c.callbacks[:0]
		for _, registered := range c.callbacks {
			if registered.id != id {
				filtered = append(filtered, registered)
			}
		}
		c.callbacks = filtered
	}
}

// StartStreaming launches the background streaming task if not already
// running (spec §4.8.3).
func (c *Client) StartStreaming(ctx context.Context) {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.streamCancel != nil {
		return
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.streamCancel = cancel
	c.streamDone = make(chan struct{})
	go c.streamLoop(streamCtx)
}

// StopStreaming cancels the background streaming task and waits for it to
// exit (spec §4.8.3).
func (c *Client) StopStreaming() {
	c.streamMu.Lock()
	cancel := c.streamCancel
	done := c.streamDone
	c.streamCancel = nil
	c.streamDone = nil
	c.streamMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// streamLoop keeps the Subscribe stream alive, reconnecting after a fixed
// delay on any error other than context cancellation (spec §4.8.3).
func (c *Client) streamLoop(ctx context.Context) {
	defer func() {
		c.streamMu.Lock()
		if c.streamDone != nil {
			close(c.streamDone)
			c.streamDone = nil
		}
		c.streamMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		err := c.subscribeStream(ctx)
		if ctx.Err() != nil {
			return
		}
		_ = err
		if c.reconnects != nil {
			c.reconnects.Inc(1)
		}
		c.publishEvent(events.Event{Category: events.CategoryStream, Type: "reconnecting"})
		if werr := c.delayer.Delay(ctx, reconnectDelay); werr != nil {
			return
		}
	}
}

// subscribeStream opens the server-streaming Subscribe call and dispatches
// every frame to the notification processor until the stream ends or ctx
// is cancelled.
func (c *Client) subscribeStream(ctx context.Context) error {
	if c.conn == nil {
		return errConnNotOpen
	}
	desc := &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, methodSubscribe, grpc.ForceCodec(rawBytesCodec{}))
	if err != nil {
		return err
	}
	req := []byte{}
	if err := stream.SendMsg(&req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		var frame []byte
		if err := stream.RecvMsg(&frame); err != nil {
			return err
		}
		c.processNotification(frame)
	}
}

// processNotification decodes a TraitInstanceNotification, updates stored
// metrics for power-metrics frames, and fans out to registered callbacks
// (spec §4.8.4/§4.8.5).
func (c *Client) processNotification(data []byte) {
	fields := wire.Parse(data)

	rti := fields.GetBytes(1)
	if rti == nil {
		return
	}
	rtiFields := wire.Parse(rti)
	ext := rtiFields.GetBytes(2)
	if ext == nil {
		return
	}
	extFields := wire.Parse(ext)
	info := extFields.GetBytes(2)
	if info == nil {
		return
	}
	infoFields := wire.Parse(info)
	meta := infoFields.GetBytes(1)
	if meta == nil {
		return
	}
	metaFields := wire.Parse(meta)
	traitID := int(metaFields.GetInt(3, 0))
	if traitID != traitPowerMetrics {
		return
	}

	var instanceID int
	if iidData := infoFields.GetBytes(2); iidData != nil {
		iidFields := wire.Parse(iidData)
		instanceID = int(iidFields.GetInt(1, 0))
	}

	notify := fields.GetBytes(2)
	if notify == nil {
		return
	}
	notifyFields := wire.Parse(notify)

	decoded := false
	for _, metricData := range notifyFields[3] {
		mb, ok := metricData.([]byte)
		if !ok {
			continue
		}
		mlFields := wire.Parse(mb)
		for _, raw := range mlFields[3] {
			rb, ok := raw.([]byte)
			if !ok {
				continue
			}
			c.decodeAndStoreMetric(instanceID, rb)
			decoded = true
		}
	}
	if decoded {
		c.notify()
		c.publishEvent(events.Event{Category: events.CategoryStream, Type: "notification_decoded"})
	}
}

func (c *Client) decodeAndStoreMetric(iid int, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if iid == mainFeedIID {
		c.data.mainFeed = decodeMainFeed(raw)
		return
	}
	circuitID, ok := c.metricIIDToCircuit[iid]
	if !ok {
		return
	}

	top := wire.Parse(raw)
	if dual := top.GetBytes(12); dual != nil {
		c.data.metrics[circuitID] = decodeDualPhase(dual)
		info := c.data.circuits[circuitID]
		info.isDualPhase = true
		c.data.circuits[circuitID] = info
		return
	}
	if single := top.GetBytes(11); single != nil {
		c.data.metrics[circuitID] = decodeSinglePhase(single)
		info := c.data.circuits[circuitID]
		info.isDualPhase = false
		c.data.circuits[circuitID] = info
	}
}

// notify invokes every registered callback, isolating panics per callback
// so one misbehaving observer never stops the others or the stream loop
// (spec §4.8.5).
func (c *Client) notify() {
	c.callbacksMu.RLock()
	if len(c.callbacks) == 0 {
		c.callbacksMu.RUnlock()
		return
	}
	callbacks := append([]registeredCallback(nil), c.callbacks...)
	c.callbacksMu.RUnlock()

	for _, registered := range callbacks {
		func() {
			defer func() { _ = recover() }()
			registered.fn()
		}()
	}
}
