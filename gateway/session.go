package gateway

import (
	"context"
	"net/http"

	"atpkiosk/models"
	"atpkiosk/utils"
)

// GetSession fetches a session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/session/%s", sessionID), nil, &session,
		"Failed to fetch session details", nil)
	if err != nil {
		return nil, err
	}
	if session.SessionID == "" {
		session.SessionID = sessionID
	}
	if session.ExpiresAt.IsZero() {
		return nil, utils.NewError(utils.KindServerRejected, "Failed to fetch session details", errMissingExpiry)
	}
	return &session, nil
}

// GetJobStatus returns the raw job status; parsing is left to the caller so
// unrecognized values can be reported rather than failing the request.
func (c *Client) GetJobStatus(ctx context.Context, sessionID string) (*models.JobStatusResponse, error) {
	var out models.JobStatusResponse
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("/api/session/%s/status", sessionID), nil, &out,
		"Failed to fetch job status", nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
