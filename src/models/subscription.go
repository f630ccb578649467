package models

// -----------------------------------------------------------------------------
// Browser control messages
// -----------------------------------------------------------------------------

// MSubscribeRequest is the control frame a browser sends on /ws/market.
// Absent arrays are treated as empty.
type MSubscribeRequest struct {
	Type        string   `json:"type"`
	Trades      []string `json:"trades"`
	Quotes      []string `json:"quotes"`
	Bars        []string `json:"bars"`
	UpdatedBars []string `json:"updatedBars"`
	DailyBars   []string `json:"dailyBars"`
}

// -----------------------------------------------------------------------------
// Subscription set
// -----------------------------------------------------------------------------

// MSubscriptionSet is the latest full set of symbols a session has requested.
// The vendor is the source of truth for what remains subscribed; the relay
// only keeps this copy so it can replay it after a reconnect.
type MSubscriptionSet struct {
	Trades      []string `json:"trades"`
	Quotes      []string `json:"quotes"`
	Bars        []string `json:"bars"`
	UpdatedBars []string `json:"updatedBars"`
	DailyBars   []string `json:"dailyBars"`
}

// -----------------------------------------------------------------------------

// NewSubscriptionSet builds a set from a browser request, normalizing nil
// arrays to empty so the vendor frame always carries all five fields.
func NewSubscriptionSet(req *MSubscribeRequest) MSubscriptionSet {
	return MSubscriptionSet{
		Trades:      orEmpty(req.Trades),
		Quotes:      orEmpty(req.Quotes),
		Bars:        orEmpty(req.Bars),
		UpdatedBars: orEmpty(req.UpdatedBars),
		DailyBars:   orEmpty(req.DailyBars),
	}
}

// -----------------------------------------------------------------------------

// IsEmpty reports whether the set holds no symbols at all.
func (s MSubscriptionSet) IsEmpty() bool {
	return len(s.Trades) == 0 && len(s.Quotes) == 0 && len(s.Bars) == 0 &&
		len(s.UpdatedBars) == 0 && len(s.DailyBars) == 0
}

// -----------------------------------------------------------------------------

// SubscribeFrame translates the set into the vendor subscription action.
// All five arrays are always present, empty ones included, matching what the
// vendor stream expects.
func (s MSubscriptionSet) SubscribeFrame() MSubscribeAction {
	return MSubscribeAction{
		Action:      "subscribe",
		Trades:      orEmpty(s.Trades),
		Quotes:      orEmpty(s.Quotes),
		Bars:        orEmpty(s.Bars),
		UpdatedBars: orEmpty(s.UpdatedBars),
		DailyBars:   orEmpty(s.DailyBars),
	}
}

// -----------------------------------------------------------------------------

// MAuthAction is the credential frame sent once per upstream connection.
type MAuthAction struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// MSubscribeAction is the vendor-facing subscription change frame.
type MSubscribeAction struct {
	Action      string   `json:"action"`
	Trades      []string `json:"trades"`
	Quotes      []string `json:"quotes"`
	Bars        []string `json:"bars"`
	UpdatedBars []string `json:"updatedBars"`
	DailyBars   []string `json:"dailyBars"`
}

// -----------------------------------------------------------------------------

func orEmpty(symbols []string) []string {
	if symbols == nil {
		return []string{}
	}
	return symbols
}
