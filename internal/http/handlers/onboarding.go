package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"loopgate/internal/domain/credential"
	"loopgate/internal/store/repositories"
)

type onboardMerchantReq struct {
	MerchantID    string `json:"merchantId"`
	KeyID         string `json:"keyId"`
	KeySecret     string `json:"keySecret"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
	WebhookURL    string `json:"webhookUrl,omitempty"`
}

type onboardMerchantResp struct {
	MerchantID string `json:"merchantId"`
	KeyID      string `json:"keyId"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// OnboardMerchant stores a merchant's gateway key pair and webhook
// settings. Secrets go in encrypted and never come back out.
func OnboardMerchant(creds repositories.CredentialRepository, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in onboardMerchantReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		in.MerchantID = strings.TrimSpace(in.MerchantID)

		cred, err := credential.New(in.MerchantID, in.KeyID, in.KeySecret, in.WebhookSecret, in.WebhookURL, encKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := creds.Save(r.Context(), cred); err != nil {
			http.Error(w, "save credential failed", http.StatusInternalServerError)
			return
		}

		writeJSON(w, onboardMerchantResp{
			MerchantID: cred.MerchantID,
			KeyID:      cred.KeyID,
			WebhookURL: cred.WebhookDestination,
		})
	}
}
