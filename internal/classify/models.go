package classify

// Request for POST to the classification endpoint.
type Request struct {
	ImageB64 string `json:"image_b64"` // base64 JPEG, no data-URL prefix
}

// Result from the classification endpoint. Fields beyond OK are only
// present on success; pointers distinguish absent from zero.
type Result struct {
	OK        bool     `json:"ok"`
	AcneClass *int     `json:"acne_class,omitempty"`
	AcneProb  *float64 `json:"acne_prob,omitempty"`
	Dryness   *float64 `json:"dryness,omitempty"`
	MLRedness *float64 `json:"ml_redness,omitempty"`
	Error     string   `json:"error,omitempty"`
}
