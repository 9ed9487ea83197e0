// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/streamkit-io/streamkit/internal/builtins"
	"github.com/streamkit-io/streamkit/internal/config"
	"github.com/streamkit-io/streamkit/internal/distributor"
	"github.com/streamkit-io/streamkit/internal/engineerr"
	"github.com/streamkit-io/streamkit/internal/noderuntime"
	"github.com/streamkit-io/streamkit/internal/packet"
	"github.com/streamkit-io/streamkit/internal/pin"
	"github.com/streamkit-io/streamkit/internal/registry"
	"github.com/streamkit-io/streamkit/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOpts() config.Options {
	o := config.Defaults()
	o.ShutdownGrace = 2 * time.Second
	return o.WithDefaults()
}

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	reg := registry.New()
	require.NoError(t, builtins.Register(reg))
	e := New(reg, telemetry.NewBus("test", 16), testOpts())
	return NewHandle(e)
}

func waitForState(t *testing.T, h *Handle, nodeID string, want noderuntime.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := h.GetNodeStates()[nodeID]; ok && st.State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("node %q did not reach state %q", nodeID, want)
}

func TestEngine_SimpleReliablePipeline(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind,
		Params: []byte(`{"text":"hi","interval_ms":5,"count":3}`)}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "dst", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable}))

	waitForState(t, h, "src", noderuntime.StateStopped)

	deadline := time.Now().Add(time.Second)
	var got []string
	for time.Now().Before(deadline) {
		if node, ok := h.nodeInstances()["dst"]; ok {
			sink := node.(*builtins.Sink)
			if len(sink.Received()) >= 3 {
				for _, p := range sink.Received() {
					txt, _ := p.AsText()
					got = append(got, txt)
				}
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, []string{"hi", "hi", "hi"}, got)
}

func TestEngine_BroadcastFanOut(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind,
		Params: []byte(`{"text":"fan","interval_ms":5,"count":4}`)}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "a", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "b", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "a", ToPin: "in", Mode: distributor.Reliable}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "b", ToPin: "in", Mode: distributor.Reliable}))

	waitForState(t, h, "src", noderuntime.StateStopped)

	deadline := time.Now().Add(time.Second)
	instances := h.nodeInstances()
	sinkA := instances["a"].(*builtins.Sink)
	sinkB := instances["b"].(*builtins.Sink)
	for time.Now().Before(deadline) {
		if len(sinkA.Received()) >= 4 && len(sinkB.Received()) >= 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Len(t, sinkA.Received(), 4, "every broadcast edge must receive its own copy")
	assert.Len(t, sinkB.Received(), 4)
}

func TestEngine_BestEffortCountsEveryPacket(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind,
		Params: []byte(`{"text":"x","interval_ms":1,"count":200}`)}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "slow", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "slow", ToPin: "in", Mode: distributor.BestEffort}))

	waitForState(t, h, "src", noderuntime.StateStopped)

	d, ok := h.distributorFor("src", "out")
	require.True(t, ok)

	id := distributor.ConnectionID{FromNode: "src", FromPin: "out", ToNode: "slow", ToPin: "in"}
	sink := h.nodeInstances()["slow"].(*builtins.Sink)
	total := uint64(len(sink.Received())) + d.DroppedFor(id)
	assert.Equal(t, uint64(200), total, "every emitted packet is either delivered or counted as dropped")
}

func TestEngine_ValidationRollbackOnTypeMismatch(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "dst", Kind: builtins.GainKind}))

	err := h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable})
	require.Error(t, err)
	assert.Equal(t, engineerr.Configuration, engineerr.KindOf(err))

	desc := h.DescribeGraph()
	for _, c := range desc.Connections {
		assert.NotEqual(t, "src", c.FromNode, "rejected connection must not be committed")
	}
}

func TestEngine_CycleRejected(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "a", Kind: builtins.IdentityKind}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "b", Kind: builtins.IdentityKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "a", FromPin: "out", ToNode: "b", ToPin: "in", Mode: distributor.Reliable}))

	err := h.SubmitControl(Connect{FromNode: "b", FromPin: "out", ToNode: "a", ToPin: "in", Mode: distributor.Reliable})
	require.Error(t, err)
	assert.Equal(t, engineerr.Configuration, engineerr.KindOf(err))
}

func TestEngine_GracefulShutdownUnderLoad(t *testing.T) {
	h := newTestHandle(t)

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind,
		Params: []byte(`{"text":"z","interval_ms":1}`)})) // unbounded until shutdown
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "dst", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable}))

	waitForState(t, h, "src", noderuntime.StateRunning)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, h.ShutdownAndWait())
	assert.NoError(t, h.ShutdownAndWait(), "second call must be idempotent")
}

func TestEngine_RemoveNodeTearsDownConnections(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "dst", Kind: builtins.SinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable}))

	require.NoError(t, h.SubmitControl(RemoveNode{NodeID: "dst"}))

	desc := h.DescribeGraph()
	for _, n := range desc.Nodes {
		assert.NotEqual(t, "dst", n.NodeID)
	}
	for _, c := range desc.Connections {
		assert.NotEqual(t, "dst", c.ToNode)
	}
}

func TestEngine_StateSubscriptionReceivesSnapshotFirst(t *testing.T) {
	h := newTestHandle(t)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "a", Kind: builtins.IdentityKind}))

	sub := h.SubscribeState()
	defer h.UnsubscribeState(sub)

	select {
	case msg := <-sub.C():
		_, ok := msg.(snapshotMsg[noderuntime.StateEvent])
		assert.True(t, ok, "first message must be a snapshot")
	case <-time.After(time.Second):
		t.Fatal("expected snapshot message")
	}
}

func TestRunOneshot_CompletesAndShutsDown(t *testing.T) {
	reg := registry.New()
	require.NoError(t, builtins.Register(reg))

	var gotCount int
	err := RunOneshot(reg, testOpts(), OneshotSpec{
		Nodes: []AddNode{
			{NodeID: "src", Kind: builtins.SourceKind, Params: []byte(`{"text":"hi","interval_ms":2,"count":2}`)},
			{NodeID: "dst", Kind: builtins.SinkKind},
		},
		Edges: []Connect{
			{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable},
		},
	}, func(h *Handle) error {
		waitForState(t, h, "src", noderuntime.StateStopped)
		sink := h.nodeInstances()["dst"].(*builtins.Sink)
		gotCount = len(sink.Received())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, gotCount)
}

const stalledSinkKind = "stalled_sink"

// stalledSink never drains its input pin; it only watches ControlRx and ctx
// for shutdown. Wired behind a Reliable edge with a capacity-1 queue, it lets
// a test saturate the producer's distributor deterministically.
type stalledSink struct{}

func newStalledSink(params json.RawMessage) (noderuntime.Node, error) { return &stalledSink{}, nil }

func (s *stalledSink) Initialize(ctx context.Context) (*noderuntime.PinUpdate, error) {
	return nil, nil
}

func (s *stalledSink) InputPins() []pin.Input {
	return []pin.Input{{Name: "in", AcceptsTypes: []packet.Type{packet.Any}, Cardinality: pin.Cardinality{Kind: pin.One}}}
}

func (s *stalledSink) OutputPins() []pin.Output { return nil }

func (s *stalledSink) Run(ctx context.Context, nc *noderuntime.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ctl := <-nc.ControlRx:
			if ctl.Kind == noderuntime.ControlShutdown {
				return nil
			}
		}
	}
}

func stalledSinkDescriptor() registry.Descriptor {
	return registry.Descriptor{
		Kind:          stalledSinkKind,
		Category:      "sink",
		DefaultInputs: (&stalledSink{}).InputPins(),
	}
}

// TestEngine_RemoveNodeUnblocksSaturatedReliableProducer reproduces the
// boundary case in which RemoveNode targets a Reliable edge's destination
// while the producer's distributor is blocked fanning out to that node's
// full input queue. Before the edge had its own close signal, the
// distributor's goroutine could never drain its config channel to observe
// the teardown, wedging both the distributor and the producer blocked on
// Output.Send forever.
func TestEngine_RemoveNodeUnblocksSaturatedReliableProducer(t *testing.T) {
	reg := registry.New()
	require.NoError(t, builtins.Register(reg))
	require.NoError(t, reg.Register(stalledSinkDescriptor(), newStalledSink))

	opts := testOpts()
	opts.NodeInputCapacity = 1
	opts.PinDistributorCapacity = 1
	opts = opts.WithDefaults()

	e := New(reg, telemetry.NewBus("test", 16), opts)
	h := NewHandle(e)
	defer h.ShutdownAndWait()

	require.NoError(t, h.SubmitControl(AddNode{NodeID: "src", Kind: builtins.SourceKind,
		Params: []byte(`{"text":"hi","interval_ms":1,"count":0}`)}))
	require.NoError(t, h.SubmitControl(AddNode{NodeID: "dst", Kind: stalledSinkKind}))
	require.NoError(t, h.SubmitControl(Connect{FromNode: "src", FromPin: "out", ToNode: "dst", ToPin: "in", Mode: distributor.Reliable}))

	waitForState(t, h, "dst", noderuntime.StateRunning)
	// Give the source time to fill dst's input queue and the distributor's
	// own inbound queue, then block on a further Reliable send.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- h.SubmitControl(RemoveNode{NodeID: "dst"})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RemoveNode did not return; distributor stayed wedged on the saturated edge")
	}

	desc := h.DescribeGraph()
	for _, n := range desc.Nodes {
		assert.NotEqual(t, "dst", n.NodeID)
	}
}
