// Package service holds outbound collaborators: the mailbox verification
// gate called during registration and the domain event publisher.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DeliverabilityResult is the outcome of a mailbox verification call.
// Reason is set whenever Deliverable is false.
type DeliverabilityResult struct {
	Deliverable bool
	Reason      string
}

// EmailVerifier is the registration-time gate contract. Implementations
// must be bounded: they may block for at most their configured timeout.
type EmailVerifier interface {
	Check(ctx context.Context, email string) DeliverabilityResult
}

// mailboxResponse mirrors the apilayer mailbox verification payload. Only
// the fields the gate decides on are listed.
type mailboxResponse struct {
	MXFound   bool `json:"mx_found"`
	SMTPCheck bool `json:"smtp_check"`
	Error     *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

// MailboxCheck verifies that an address can actually receive mail before
// an account is created. Every failure mode resolves to "not deliverable"
// with a reason: missing configuration, timeout, transport error, non-2xx
// response, or a negative SMTP/MX signal. Fail-closed by design.
type MailboxCheck struct {
	AccessKey string
	BaseURL   string
	Timeout   time.Duration
	Client    *http.Client
}

func NewMailboxCheck(accessKey, baseURL string, timeout time.Duration) *MailboxCheck {
	return &MailboxCheck{
		AccessKey: accessKey,
		BaseURL:   baseURL,
		Timeout:   timeout,
		Client:    &http.Client{},
	}
}

// Check performs the bounded verification call. The context is capped with
// the configured timeout so the registering request can never hang on the
// upstream service past that bound.
func (m *MailboxCheck) Check(ctx context.Context, email string) DeliverabilityResult {
	if m.AccessKey == "" {
		return DeliverabilityResult{Reason: "email verification is not configured"}
	}

	u, err := url.Parse(m.BaseURL)
	if err != nil {
		return DeliverabilityResult{Reason: "invalid email verification endpoint"}
	}
	q := u.Query()
	q.Set("access_key", m.AccessKey)
	q.Set("email", email)
	q.Set("smtp", "1")
	q.Set("format", "1")
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return DeliverabilityResult{Reason: "email verification request failed"}
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return DeliverabilityResult{Reason: "email verification timed out"}
		}
		return DeliverabilityResult{Reason: "email verification request failed"}
	}
	defer resp.Body.Close()

	var data mailboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return DeliverabilityResult{Reason: "email verification returned an unreadable response"}
	}
	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if data.Error != nil && data.Error.Info != "" {
			reason = data.Error.Info
		}
		return DeliverabilityResult{Reason: reason}
	}

	// Deliverable needs both an affirmative mailbox signal and a
	// resolvable MX record for the domain.
	if data.SMTPCheck && data.MXFound {
		return DeliverabilityResult{Deliverable: true}
	}
	return DeliverabilityResult{Reason: "SMTP check failed or MX not found"}
}
