// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the engine's construction options and the YAML
// loading/hot-reload machinery for saved pipeline definitions (spec §6).
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Options are the construction-time tunables recognized by the engine (spec §6).
type Options struct {
	// PacketBatchSize is the max packets a node pulls per round before
	// yielding to check control/cancel (spec §4.2).
	PacketBatchSize int `yaml:"packet_batch_size"`
	// NodeInputCapacity is the bounded size of each per-input queue.
	NodeInputCapacity int `yaml:"node_input_capacity"`
	// PinDistributorCapacity is the bounded size of the producer->distributor queue.
	PinDistributorCapacity int `yaml:"pin_distributor_capacity"`
	// ControlCapacity is the size of each node's control channel.
	ControlCapacity int `yaml:"control_capacity"`
	// EngineControlCapacity is the size of the engine's control inbox.
	EngineControlCapacity int `yaml:"engine_control_capacity"`
	// SubscriberChannelCapacity is the size of each external subscriber's queue.
	SubscriberChannelCapacity int `yaml:"subscriber_channel_capacity"`
	// ShutdownGrace is the max time to wait for cooperative shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Defaults returns the engine's default Options (spec §6's table).
func Defaults() Options {
	return Options{
		PacketBatchSize:           32,
		NodeInputCapacity:         128,
		PinDistributorCapacity:    64,
		ControlCapacity:           32,
		EngineControlCapacity:     128,
		SubscriberChannelCapacity: 128,
		ShutdownGrace:             10 * time.Second,
	}
}

// WithDefaults fills any zero-valued field in o with its default, so a
// partially specified YAML document still yields complete Options.
func (o Options) WithDefaults() Options {
	d := Defaults()
	if o.PacketBatchSize == 0 {
		o.PacketBatchSize = d.PacketBatchSize
	}
	if o.NodeInputCapacity == 0 {
		o.NodeInputCapacity = d.NodeInputCapacity
	}
	if o.PinDistributorCapacity == 0 {
		o.PinDistributorCapacity = d.PinDistributorCapacity
	}
	if o.ControlCapacity == 0 {
		o.ControlCapacity = d.ControlCapacity
	}
	if o.EngineControlCapacity == 0 {
		o.EngineControlCapacity = d.EngineControlCapacity
	}
	if o.SubscriberChannelCapacity == 0 {
		o.SubscriberChannelCapacity = d.SubscriberChannelCapacity
	}
	if o.ShutdownGrace == 0 {
		o.ShutdownGrace = d.ShutdownGrace
	}
	return o
}

// rawOptions mirrors Options with ShutdownGrace as a parseable string, since
// yaml.v3 has no built-in time.Duration codec.
type rawOptions struct {
	PacketBatchSize           int    `yaml:"packet_batch_size"`
	NodeInputCapacity         int    `yaml:"node_input_capacity"`
	PinDistributorCapacity    int    `yaml:"pin_distributor_capacity"`
	ControlCapacity           int    `yaml:"control_capacity"`
	EngineControlCapacity     int    `yaml:"engine_control_capacity"`
	SubscriberChannelCapacity int    `yaml:"subscriber_channel_capacity"`
	ShutdownGrace             string `yaml:"shutdown_grace"`
}

// UnmarshalYAML implements yaml.Unmarshaler so shutdown_grace accepts a
// duration string like "10s".
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	var raw rawOptions
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*o = Options{
		PacketBatchSize:           raw.PacketBatchSize,
		NodeInputCapacity:         raw.NodeInputCapacity,
		PinDistributorCapacity:    raw.PinDistributorCapacity,
		ControlCapacity:           raw.ControlCapacity,
		EngineControlCapacity:     raw.EngineControlCapacity,
		SubscriberChannelCapacity: raw.SubscriberChannelCapacity,
	}

	if raw.ShutdownGrace != "" {
		d, err := time.ParseDuration(raw.ShutdownGrace)
		if err != nil {
			return fmt.Errorf("config: parse shutdown_grace: %w", err)
		}
		o.ShutdownGrace = d
	}
	return nil
}
