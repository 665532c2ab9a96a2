package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "credential_record_json"
	CredentialPayloadVersionV1    = 1
)

// JSONCredentialCodec is the default payload encoding for stored credentials.
type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	Provider      string     `json:"provider,omitempty"`
	TokenType     string     `json:"token_type,omitempty"`
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	GrantedScopes []string   `json:"granted_scopes,omitempty"`
	IssuedAt      time.Time  `json:"issued_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	State         string     `json:"state,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func (JSONCredentialCodec) Encode(record Record) ([]byte, error) {
	payload := jsonCredentialPayload{
		Provider:      strings.TrimSpace(record.Provider),
		TokenType:     strings.TrimSpace(record.TokenType),
		AccessToken:   strings.TrimSpace(record.AccessToken),
		RefreshToken:  strings.TrimSpace(record.RefreshToken),
		GrantedScopes: append([]string(nil), record.GrantedScopes...),
		IssuedAt:      record.IssuedAt,
		ExpiresAt:     cloneTimePointer(record.ExpiresAt),
		State:         string(record.State),
		LastError:     strings.TrimSpace(record.LastError),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (Record, error) {
	if len(payload) == 0 {
		return Record{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Record{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return Record{
		Provider:      strings.TrimSpace(decoded.Provider),
		TokenType:     strings.TrimSpace(decoded.TokenType),
		AccessToken:   strings.TrimSpace(decoded.AccessToken),
		RefreshToken:  strings.TrimSpace(decoded.RefreshToken),
		GrantedScopes: append([]string(nil), decoded.GrantedScopes...),
		IssuedAt:      decoded.IssuedAt,
		ExpiresAt:     cloneTimePointer(decoded.ExpiresAt),
		State:         CredentialState(strings.TrimSpace(decoded.State)),
		LastError:     strings.TrimSpace(decoded.LastError),
	}, nil
}

var _ CredentialCodec = JSONCredentialCodec{}
