// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package vst3

import "fmt"

// Result is a VST3 tresult status code. The values are the non-COM
// (native Linux/macOS) SDK values; the bridge carries them unchanged
// across the process boundary.
type Result int32

const (
	ResultNoInterface     Result = -1
	ResultOK              Result = 0
	ResultTrue            Result = ResultOK
	ResultFalse           Result = 1
	ResultInvalidArgument Result = 2
	ResultNotImplemented  Result = 3
	ResultInternalError   Result = 4
	ResultNotInitialized  Result = 5
	ResultOutOfMemory     Result = 6
)

// OK reports whether r is ResultOK (which is also ResultTrue).
func (r Result) OK() bool { return r == ResultOK }

// String returns the SDK constant name for known codes.
func (r Result) String() string {
	switch r {
	case ResultNoInterface:
		return "kNoInterface"
	case ResultOK:
		return "kResultOk"
	case ResultFalse:
		return "kResultFalse"
	case ResultInvalidArgument:
		return "kInvalidArgument"
	case ResultNotImplemented:
		return "kNotImplemented"
	case ResultInternalError:
		return "kInternalError"
	case ResultNotInitialized:
		return "kNotInitialized"
	case ResultOutOfMemory:
		return "kOutOfMemory"
	default:
		return fmt.Sprintf("tresult(%d)", int32(r))
	}
}

// ResultFromBool maps a boolean answer onto ResultTrue/ResultFalse, the
// convention for query-style methods like canProcessSampleSize.
func ResultFromBool(value bool) Result {
	if value {
		return ResultTrue
	}
	return ResultFalse
}
