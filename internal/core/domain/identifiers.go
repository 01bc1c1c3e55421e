package domain

// SKUParts are the five dash-joined segments of a SKU.
type SKUParts struct {
	Category string
	Model    string
	Color    string
	Brand    string
	Hash     string
}

// PCCCValidation is the outcome of validating a personal customs clearance code.
// Validation never fails with an error; problems are listed in Errors.
type PCCCValidation struct {
	IsValid    bool     `json:"is_valid"`
	Normalized string   `json:"normalized,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}
