package dto

type VerifierLoginRequest struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type CreateCampaignRequest struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	JournalistAddress string `json:"journalist_address"`
	VerifierAddress   string `json:"verifier_address"`
}

type DonateRequest struct {
	CampaignID string `json:"campaign_id"`
	// AmountXRP is a decimal string; floats lose precision at drop scale.
	AmountXRP  string `json:"amount_xrp"`
	PaymentRef string `json:"payment_ref"`
}

type ReleaseEscrowRequest struct {
	RequestID string `json:"request_id"`
}

type AddVerifierRequest struct {
	Address string `json:"address"`
}
