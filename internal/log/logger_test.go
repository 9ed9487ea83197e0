// Copyright (c) 2026 StreamKit authors
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_AttachesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "streamkit-test", Version: "v0.0.0-test"})

	WithComponent("engine").Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"service":"streamkit-test"`)
	assert.Contains(t, out, `"component":"engine"`)
	assert.Contains(t, out, `"message":"hello"`)
}

func TestSetLevel_RejectsInvalid(t *testing.T) {
	Configure(Config{Output: &bytes.Buffer{}})
	err := SetLevel("not-a-level")
	require.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Level: "info"})
	require.NoError(t, SetLevel("warn"))

	WithComponent("distributor").Info().Msg("should be filtered")
	WithComponent("distributor").Warn().Msg("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should be filtered"))
	assert.True(t, strings.Contains(out, "should appear"))
}
