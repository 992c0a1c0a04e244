// Package handshake implements the two platform collaborators: the source
// adapter that turns the postings API or extracted job IDs into normalised
// JobRecords, and the applicator that performs the actual submission call.
//
// Authentication is cookie-based: the session cookies are supplied via
// configuration and assumed valid for the run. The client never refreshes
// them — a rejected cookie surfaces as an auth failure and ends the run.
package handshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/Prakashmaheshwaran/handshook/internal/engine"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

const (
	// Host is the consumer-facing Handshake domain.
	Host = "app.joinhandshake.com"

	acceptGet       = "application/json"
	acceptPost      = "application/json, text/javascript, */*; q=0.01"
	contentTypeJSON = "application/json; charset=utf-8"
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

	// csrfTokenLength is the fixed length of the token embedded in the
	// landing page's meta tag.
	csrfTokenLength = 88

	httpTimeout = 15 * time.Second
)

// Platform document type IDs as used by required_job_document_types.
const (
	resumeTypeID     = 1
	coverTypeID      = 2
	transcriptTypeID = 3
	otherTypeID      = 5
)

// ErrCookiesRejected marks responses that indicate an expired or invalid
// session. Callers treat it as fatal for the run.
var ErrCookiesRejected = errors.New("session cookies rejected by platform")

// ErrDetailsForbidden marks postings whose detail endpoint returned 403.
// The platform does this for postings the candidate does not qualify for;
// they are skipped silently.
var ErrDetailsForbidden = errors.New("job details not accessible")

// Client talks to Handshake with the user's session cookies. All requests
// share one rate limiter so bulk runs stay polite.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	docs        map[model.DocumentType]int64
	csrf        string
	searchQuery url.Values
	log         *logging.Logger
}

// NewClient builds a Client from session cookies and the configured
// document IDs. Call Bootstrap before submitting.
func NewClient(cookies map[string]string, docs map[model.DocumentType]int64, log *logging.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	base := &url.URL{Scheme: "https", Host: Host}
	hc := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		hc = append(hc, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(base, hc)

	return &Client{
		http:    &http.Client{Timeout: httpTimeout, Jar: jar},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		docs:    docs,
		log:     log,
	}, nil
}

// Bootstrap fetches the landing page and scrapes the CSRF token required by
// every submission request.
func (c *Client) Bootstrap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+Host, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch landing page")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read landing page")
	}

	const marker = `<meta name="csrf-token" content="`
	idx := strings.Index(string(body), marker)
	if idx < 0 || idx+len(marker)+csrfTokenLength > len(body) {
		return errors.Wrap(ErrCookiesRejected, "no csrf token on landing page")
	}
	c.csrf = string(body[idx+len(marker) : idx+len(marker)+csrfTokenLength])

	c.log.Debug("csrf token acquired")
	return nil
}

// applicationPayload mirrors the platform's submission body.
type applicationPayload struct {
	Application struct {
		ApplicableID   string  `json:"applicable_id"`
		ApplicableType string  `json:"applicable_type"`
		DocumentIDs    []int64 `json:"document_ids"`
	} `json:"application"`
	WorkAuthorizationStatus *string `json:"work_authorization_status"`
}

// Submit applies to the job, attaching the configured document IDs for each
// required document type. The outcome is classified for the engine; the
// returned error only carries diagnostic detail.
func (c *Client) Submit(ctx context.Context, job model.JobRecord) (engine.SubmitResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return engine.SubmitTransient, err
	}

	var payload applicationPayload
	payload.Application.ApplicableID = job.JobID
	payload.Application.ApplicableType = "Job"
	for _, t := range job.RequiredDocuments {
		id, ok := c.docs[t]
		if !ok || id == 0 {
			// The engine's document check runs first; reaching this means a
			// stale deferred snapshot. Classify as rejected so it settles.
			return engine.SubmitRejected, errors.Newf("no document ID configured for %s", t)
		}
		payload.Application.DocumentIDs = append(payload.Application.DocumentIDs, id)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return engine.SubmitTransient, errors.Wrap(err, "encode application")
	}

	submitURL := fmt.Sprintf("https://%s/jobs/%s/applications", Host, job.JobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return engine.SubmitTransient, err
	}
	req.Header.Set("Accept", acceptPost)
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-CSRF-Token", c.csrf)

	resp, err := c.http.Do(req)
	if err != nil {
		return engine.SubmitTransient, errors.Wrap(err, "submit application")
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return engine.SubmitSuccess, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return engine.SubmitAuthFailure, errors.Wrapf(ErrCookiesRejected, "status %d: %s", resp.StatusCode, respBody)
	case resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusGone ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return engine.SubmitRejected, errors.Newf("status %d: %s", resp.StatusCode, respBody)
	default:
		// 5xx, 429 and anything unexpected: leave the job unresolved so it
		// is retried next run.
		return engine.SubmitTransient, errors.Newf("status %d: %s", resp.StatusCode, respBody)
	}
}

// jobDetailResponse mirrors the relevant slice of /stu/jobs/{id}.
type jobDetailResponse struct {
	Job struct {
		Title    string `json:"title"`
		Employer struct {
			Name string `json:"name"`
		} `json:"employer"`
		ApplyStart      string `json:"apply_start"`
		JobApplySetting struct {
			ApplyType string `json:"apply_type"`
		} `json:"job_apply_setting"`
		RequiredJobDocumentTypes []struct {
			DocumentTypeID int `json:"document_type_id"`
		} `json:"required_job_document_types"`
	} `json:"job"`
}

// JobDetails completes a partial record with the posting's apply settings
// and required document types. Fields already present on base win over the
// detail payload.
func (c *Client) JobDetails(ctx context.Context, base model.JobRecord) (model.JobRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return base, err
	}

	detailURL := fmt.Sprintf("https://%s/stu/jobs/%s", Host, base.JobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return base, err
	}
	req.Header.Set("Accept", acceptGet)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return base, errors.Wrapf(err, "fetch details for job %s", base.JobID)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return base, ErrDetailsForbidden
	case http.StatusUnauthorized:
		return base, errors.Wrapf(ErrCookiesRejected, "job %s details returned 401", base.JobID)
	default:
		return base, errors.Newf("job %s details returned %d", base.JobID, resp.StatusCode)
	}

	var detail jobDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return base, errors.Wrapf(err, "decode details for job %s", base.JobID)
	}

	if base.Title == "" {
		base.Title = detail.Job.Title
	}
	if base.Employer == "" {
		base.Employer = detail.Job.Employer.Name
	}
	if base.ApplyOpensAt == nil && detail.Job.ApplyStart != "" {
		if t, err := time.Parse(time.RFC3339, detail.Job.ApplyStart); err == nil {
			base.ApplyOpensAt = &t
		}
	}

	base.RequiredDocuments = c.mapRequiredDocuments(base.JobID, &detail)
	return base, nil
}

// mapRequiredDocuments converts platform document type IDs to the model
// set. External-only postings and postings requiring a document type this
// tool does not understand come back empty, which the engine reads as
// ineligible.
func (c *Client) mapRequiredDocuments(jobID string, detail *jobDetailResponse) []model.DocumentType {
	if detail.Job.JobApplySetting.ApplyType != "handshake" {
		return nil
	}

	docs := make([]model.DocumentType, 0, len(detail.Job.RequiredJobDocumentTypes))
	for _, rt := range detail.Job.RequiredJobDocumentTypes {
		switch rt.DocumentTypeID {
		case resumeTypeID:
			docs = append(docs, model.DocumentResume)
		case coverTypeID:
			docs = append(docs, model.DocumentCoverLetter)
		case transcriptTypeID:
			docs = append(docs, model.DocumentTranscript)
		case otherTypeID:
			docs = append(docs, model.DocumentOther)
		default:
			c.log.Debug("unsupported required document type",
				"job_id", jobID, "document_type_id", rt.DocumentTypeID)
			return nil
		}
	}
	return docs
}
