package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/inboxd/inboxd/interfaces"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/models"
)

const defaultAPIBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// apiClient is a thin authenticated JSON client over the REST surface.
// The bearer token comes from the credential provider and is treated
// as opaque.
type apiClient struct {
	base    string
	http    *http.Client
	creds   interfaces.CredentialProvider
	account *models.Account
}

func newAPIClient(base string, timeout time.Duration, creds interfaces.CredentialProvider, account *models.Account) *apiClient {
	if base == "" {
		base = defaultAPIBase
	}
	return &apiClient{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		account: account,
	}
}

// doJSON performs one API call, refreshing the token and retrying once
// on an expired-token response.
func (c *apiClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	err := c.request(ctx, method, path, query, body, out, false)
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) == apperrors.KindTokenExpired {
		if _, refreshErr := c.creds.Refresh(ctx, c.account); refreshErr != nil {
			return apperrors.Wrap(apperrors.KindAuthentication, refreshErr, "token refresh failed")
		}
		return c.request(ctx, method, path, query, body, out, true)
	}
	return err
}

func (c *apiClient) request(ctx context.Context, method, path string, query url.Values, body, out interface{}, refreshed bool) error {
	token, err := c.creds.Token(ctx, c.account)
	if err != nil {
		return apperrors.Wrap(apperrors.KindAuthentication, err, "no credentials for account")
	}

	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInvalidRequest, err, "failed to marshal request body")
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidRequest, err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindNetwork, err, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.KindNetwork, err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapStatusError(resp, raw, refreshed)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "failed to unmarshal response")
		}
	}
	return nil
}

func (c *apiClient) mapStatusError(resp *http.Response, raw []byte, refreshed bool) error {
	var apiErr wireError
	_ = json.Unmarshal(raw, &apiErr)
	detail := apiErr.Error.Message
	if detail == "" {
		detail = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if refreshed {
			return apperrors.New(apperrors.KindAuthentication, detail)
		}
		return apperrors.New(apperrors.KindTokenExpired, detail)
	case http.StatusForbidden:
		// quota exhaustion also reports 403 on this API
		if apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
			return apperrors.RateLimited(retryAfter(resp))
		}
		return apperrors.New(apperrors.KindPermissionDenied, detail)
	case http.StatusTooManyRequests:
		return apperrors.RateLimited(retryAfter(resp))
	case http.StatusBadRequest, http.StatusNotFound:
		return apperrors.New(apperrors.KindInvalidRequest, detail)
	default:
		if resp.StatusCode >= 500 {
			return apperrors.New(apperrors.KindServerError, detail)
		}
		return apperrors.New(apperrors.KindServerError, detail)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}
