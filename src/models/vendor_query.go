package models

// -----------------------------------------------------------------------------
// Vendor REST request shapes
// -----------------------------------------------------------------------------

// MBarsQuery carries the already-normalized inputs of a bars request:
// symbol uppercased, defaults substituted, timeframe validated.
type MBarsQuery struct {
	Symbol    string
	Timeframe string
	Start     string // ISO-8601, optional
	End       string // ISO-8601, optional
	Limit     int
	Feed      string
}

// -----------------------------------------------------------------------------

// MOrderTicket is the normalized paper-trading order sent to the vendor.
// Qty is stringified because the vendor order API takes string quantities.
type MOrderTicket struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}
