package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"time"
)

type signaturePayload struct {
	AuditID    string `json:"auditId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	FromState  string `json:"fromState"`
	ToState    string `json:"toState"`
	ActorID    string `json:"actorId"`
	ActorRole  string `json:"actorRole"`
	Reason     string `json:"reason,omitempty"`
	Override   bool   `json:"override"`
	TraceID    string `json:"traceId,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func buildSignaturePayload(e *Entry) signaturePayload {
	payload := signaturePayload{
		AuditID:    e.AuditID.String(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID.String(),
		FromState:  e.FromState,
		ToState:    e.ToState,
		ActorID:    e.ActorID.String(),
		ActorRole:  string(e.ActorRole),
		Override:   e.Override,
		TraceID:    e.TraceID,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Reason != nil {
		payload.Reason = *e.Reason
	}
	return payload
}

// Sign generates an HMAC signature for the entry.
func Sign(e *Entry, key []byte) ([]byte, error) {
	data, err := json.Marshal(buildSignaturePayload(e))
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return mac.Sum(nil), nil
}

// VerifySignature checks the entry's HMAC signature.
func VerifySignature(e *Entry, key []byte) (bool, error) {
	if len(e.Signature) == 0 {
		return false, nil
	}
	expected, err := Sign(e, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, e.Signature), nil
}
