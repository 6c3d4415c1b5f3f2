// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("SESSION_NOT_FOUND").Errorf("missing")
	errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("session_key", "01HZY").Errorf("test error")
	errutil.AssertErrorContext(t, err, "session_key", "01HZY")
}
