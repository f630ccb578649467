package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Vendor stream frames
// -----------------------------------------------------------------------------

// Frame kinds as tagged by the vendor's "T" discriminant.
const (
	FrameTrade        = "t"
	FrameQuote        = "q"
	FrameBar          = "b"
	FrameUpdatedBar   = "u"
	FrameDailyBar     = "d"
	FrameSuccess      = "success"
	FrameError        = "error"
	FrameSubscription = "subscription"
)

// -----------------------------------------------------------------------------

// MStreamFrame is the minimal decode of one vendor stream message. The relay
// forwards the original payload bytes untouched; this decode exists only for
// auth-ack detection and logging.
type MStreamFrame struct {
	T    string `json:"T"`
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// -----------------------------------------------------------------------------

// DecodeStreamFrames parses a raw vendor payload, which is either a JSON
// array of frames or a single object. Payloads that are neither come back
// as an empty slice: the caller still forwards the raw bytes.
func DecodeStreamFrames(payload []byte) []MStreamFrame {
	var frames []MStreamFrame
	if err := json.Unmarshal(payload, &frames); err == nil {
		return frames
	}

	var single MStreamFrame
	if err := json.Unmarshal(payload, &single); err == nil && single.T != "" {
		return []MStreamFrame{single}
	}

	return nil
}

// -----------------------------------------------------------------------------

// IsAuthenticated reports whether the payload contains the vendor's
// post-auth success acknowledgement.
func IsAuthenticated(frames []MStreamFrame) bool {
	for _, f := range frames {
		if f.T == FrameSuccess && f.Msg == "authenticated" {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// AuthError returns the first error frame in the payload, if any. Vendor
// code 402 is an auth failure, 406 a connection limit.
func AuthError(frames []MStreamFrame) *MStreamFrame {
	for _, f := range frames {
		if f.T == FrameError {
			return &f
		}
	}
	return nil
}
