// Package claim provides the subject lookup collaborator for approval
// requests. It is a pure read over a small fixed data set; the real system
// of record sits outside this service.
package claim

import "errors"

// Lookup errors.
var (
	// ErrClaimNotFound is returned when a claim id is unknown.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrPolicyNotFound is returned when a policy number is unknown.
	ErrPolicyNotFound = errors.New("policy not found")
)

// Claim is a snapshot of an insurance claim.
type Claim struct {
	ID             string  `json:"claim_id"`
	Status         string  `json:"status"`
	Type           string  `json:"claim_type"`
	Amount         float64 `json:"claim_amount"`
	ApprovedAmount float64 `json:"approved_amount"`
	FiledDate      string  `json:"filed_date"`
	UpdatedDate    string  `json:"updated_date"`
}

// Policy is a snapshot of an insurance policy.
type Policy struct {
	Number            string  `json:"policy_number"`
	Type              string  `json:"policy_type"`
	Status            string  `json:"status"`
	Premium           float64 `json:"premium"`
	CoverageAmount    float64 `json:"coverage_amount"`
	StartDate         string  `json:"start_date"`
	RenewalDate       string  `json:"renewal_date"`
	DaysUntilRenewal  int     `json:"days_until_renewal"`
}

var claims = map[string]Claim{
	"CLM-001": {
		ID:             "CLM-001",
		Status:         "approved",
		Type:           "auto_accident",
		Amount:         5000.00,
		ApprovedAmount: 4500.00,
		FiledDate:      "2025-10-15",
		UpdatedDate:    "2025-10-25",
	},
	"CLM-002": {
		ID:          "CLM-002",
		Status:      "pending_review",
		Type:        "property_damage",
		Amount:      12000.00,
		FiledDate:   "2025-10-20",
		UpdatedDate: "2025-10-20",
	},
}

var policies = map[string]Policy{
	"POL-12345": {
		Number:           "POL-12345",
		Type:             "auto_insurance",
		Status:           "active",
		Premium:          1200.00,
		CoverageAmount:   100000.00,
		StartDate:        "2025-01-01",
		RenewalDate:      "2026-01-01",
		DaysUntilRenewal: 65,
	},
	"POL-67890": {
		Number:           "POL-67890",
		Type:             "home_insurance",
		Status:           "pending_renewal",
		Premium:          1800.00,
		CoverageAmount:   500000.00,
		StartDate:        "2024-11-01",
		RenewalDate:      "2025-11-01",
		DaysUntilRenewal: 4,
	},
}

// Lookup returns the claim with the given id, or ErrClaimNotFound.
func Lookup(id string) (Claim, error) {
	c, ok := claims[id]
	if !ok {
		return Claim{}, ErrClaimNotFound
	}
	return c, nil
}

// LookupPolicy returns the policy with the given number, or ErrPolicyNotFound.
func LookupPolicy(number string) (Policy, error) {
	p, ok := policies[number]
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return p, nil
}
