package kobo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/models"
)

const maxPages = 500

// Client talks to a KoboToolbox-compatible form service for one asset.
type Client struct {
	baseURL       string
	assetUID      string
	httpClient    *http.Client
	newInstanceID func() string
	logger        *logrus.Logger
}

func NewClient(baseURL, assetUID string, timeout time.Duration) *Client {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		assetUID:      assetUID,
		httpClient:    &http.Client{Timeout: timeout},
		newInstanceID: NewInstanceID,
		logger:        logger,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithInstanceIDs overrides instance id generation.
func (c *Client) WithInstanceIDs(gen func() string) *Client {
	c.newInstanceID = gen
	return c
}

func (c *Client) assetURL() string {
	return fmt.Sprintf("%s/api/v2/assets/%s/", c.baseURL, url.PathEscape(c.assetUID))
}

func (c *Client) dataURL() string {
	return c.assetURL() + "data/"
}

func (c *Client) recordURL(id string) string {
	return c.dataURL() + url.PathEscape(id) + "/"
}

type assetResponse struct {
	VersionID         string `json:"version_id"`
	DeployedVersionID string `json:"deployed_version_id"`
}

type dataPage struct {
	Count   int         `json:"count"`
	Next    *string     `json:"next"`
	Results []RawRecord `json:"results"`
}

// FetchAll reads every submission and the current form version.
func (c *Client) FetchAll(ctx context.Context, token string) ([]models.SubmissionRow, models.FormVersion, error) {
	version, err := c.fetchVersion(ctx, token)
	if err != nil {
		return nil, "", err
	}

	records, err := c.fetchRecords(ctx, token)
	if err != nil {
		return nil, "", err
	}

	rows, err := DecodeRows(records)
	if err != nil {
		c.logger.WithError(err).Warn("Fetched submissions do not match the form")
		return nil, "", err
	}

	c.logger.WithFields(logrus.Fields{
		"asset":   c.assetUID,
		"rows":    len(rows),
		"version": version,
	}).Info("Submissions fetched")

	return rows, version, nil
}

func (c *Client) fetchVersion(ctx context.Context, token string) (models.FormVersion, error) {
	var asset assetResponse
	if err := c.getJSON(ctx, token, c.assetURL()+"?format=json", &asset); err != nil {
		return "", err
	}

	version := models.FormVersion(asset.DeployedVersionID)
	if version.IsZero() {
		version = models.FormVersion(asset.VersionID)
	}
	if version.IsZero() {
		return "", fmt.Errorf("%w: asset has no version", ErrSchemaMismatch)
	}
	return version, nil
}

func (c *Client) fetchRecords(ctx context.Context, token string) ([]RawRecord, error) {
	var records []RawRecord
	next := c.dataURL() + "?format=json"

	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrRemoteUnavailable, maxPages)
		}

		var p dataPage
		if err := c.getJSON(ctx, token, next, &p); err != nil {
			return nil, err
		}
		if p.Results == nil {
			return nil, fmt.Errorf("%w: response has no results", ErrSchemaMismatch)
		}
		records = append(records, p.Results...)

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}

	return records, nil
}

func (c *Client) getJSON(ctx context.Context, token, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	c.authorize(req, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", target).Error("Submission service request failed")
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"url":    target,
			"status": resp.StatusCode,
		}).Error("Submission service returned an error")
		return fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// Submit sends a create, or an edit addressed by PriorID. Validation errors
// are returned as err and nothing is sent; every remote answer, including
// transport failures, comes back as a SubmitResult.
func (c *Client) Submit(ctx context.Context, token string, s Submission) (SubmitResult, error) {
	if err := s.Validate(); err != nil {
		return SubmitResult{}, err
	}

	instanceID := c.newInstanceID()
	body, err := BuildDocument(c.assetUID, s, instanceID).Marshal()
	if err != nil {
		return SubmitResult{}, err
	}

	method, target := http.MethodPost, c.dataURL()
	if s.IsEdit() {
		method, target = http.MethodPut, c.recordURL(s.PriorID)
	}

	logger := c.logger.WithFields(logrus.Fields{
		"method":      method,
		"employee":    s.Employee,
		"date":        s.Values.Date.Format(models.DateLayout),
		"prior_id":    s.PriorID,
		"instance_id": instanceID,
	})

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return SubmitResult{Outcome: OutcomeFailure, InstanceID: instanceID, Message: err.Error()}, nil
	}
	c.authorize(req, token)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("X-OpenRosa-Version", "1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Submission write failed")
		return SubmitResult{Outcome: OutcomeFailure, InstanceID: instanceID, Message: err.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result := SubmitResult{
		InstanceID: instanceID,
		StatusCode: resp.StatusCode,
		Message:    string(respBody),
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		result.Outcome = OutcomeSuccess
		logger.Info("Submission written")
	case http.StatusConflict:
		result.Outcome = OutcomeConflict
		logger.Warn("Submission rejected with a conflict")
	default:
		result.Outcome = OutcomeFailure
		logger.WithField("status", resp.StatusCode).Error("Submission write rejected")
	}

	return result, nil
}

// Delete removes one submission. Only an explicit acknowledgement counts.
func (c *Client) Delete(ctx context.Context, token, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("submission id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.recordURL(id), nil)
	if err != nil {
		return &RemoteError{Body: err.Error()}
	}
	c.authorize(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("id", id).Error("Submission delete failed")
		return &RemoteError{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode == http.StatusNoContent ||
		(resp.StatusCode == http.StatusOK && strings.Contains(strings.ToLower(string(body)), "deleted")) {
		c.logger.WithField("id", id).Info("Submission deleted")
		return nil
	}

	c.logger.WithFields(logrus.Fields{
		"id":     id,
		"status": resp.StatusCode,
	}).Error("Submission delete rejected")
	return &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
}

func (c *Client) authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
}
