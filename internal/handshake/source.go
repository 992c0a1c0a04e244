package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

const (
	searchPageSize = 25
	// searchMaxPages bounds a single discovery pass; the cutoff date
	// normally stops pagination long before this.
	searchMaxPages = 40
)

// UseSearchURL adopts the query filters of a saved search URL (employment
// type, location, query text and so on) for every postings request.
// Pagination and sort parameters are always overridden.
func (c *Client) UseSearchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "parse search url %q", raw)
	}
	c.searchQuery = u.Query()
	return nil
}

// postingsResponse mirrors the /stu/postings listing payload.
type postingsResponse struct {
	Results []postingResult `json:"results"`
}

type postingResult struct {
	JobID      json.Number `json:"job_id"`
	JobName    string      `json:"job_name"`
	ApplyStart string      `json:"apply_start"`
	CreatedAt  string      `json:"created_at"`
	Job        struct {
		EmployerName string `json:"employer_name"`
		Type         string `json:"type"`
	} `json:"job"`
}

// SearchPostings pages through the postings API, newest first, and returns
// normalised records for every posting created after cutoff. A zero cutoff
// disables the date stop. Malformed listing entries are skipped with a
// warning; they never abort discovery.
func (c *Client) SearchPostings(ctx context.Context, cutoff time.Time) ([]model.JobRecord, error) {
	var records []model.JobRecord

	for page := 1; page <= searchMaxPages; page++ {
		results, err := c.fetchPostingsPage(ctx, page)
		if err != nil {
			return records, errors.Wrapf(err, "page %d", page)
		}
		if len(results) == 0 {
			break
		}

		for _, r := range results {
			rec, sawOld, ok := c.normalizePosting(ctx, r, cutoff)
			if sawOld {
				return records, nil
			}
			if ok {
				records = append(records, rec)
			}
		}
	}

	return records, nil
}

func (c *Client) fetchPostingsPage(ctx context.Context, page int) ([]postingResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, vs := range c.searchQuery {
		params[k] = vs
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(searchPageSize))
	params.Set("sort_direction", "desc")
	params.Set("sort_column", "created_at")

	reqURL := fmt.Sprintf("https://%s/stu/postings?%s", Host, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptGet)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch postings")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.Wrapf(ErrCookiesRejected, "postings returned %d", resp.StatusCode)
	default:
		return nil, errors.Newf("postings returned %d", resp.StatusCode)
	}

	var parsed postingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "decode postings")
	}
	return parsed.Results, nil
}

// normalizePosting converts one listing entry into a complete JobRecord,
// fetching the detail payload for apply settings and document requirements.
// sawOld signals that the cutoff date was reached and pagination can stop.
func (c *Client) normalizePosting(ctx context.Context, r postingResult, cutoff time.Time) (rec model.JobRecord, sawOld, ok bool) {
	if r.JobID.String() == "" || r.JobID.String() == "0" {
		c.log.Warn("malformed posting without job_id, skipped", "title", r.JobName)
		return model.JobRecord{}, false, false
	}

	base := model.JobRecord{
		JobID:    r.JobID.String(),
		Title:    r.JobName,
		Employer: r.Job.EmployerName,
		Source:   model.SourceAPISearch,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		base.PostedAt = &t
		if !cutoff.IsZero() && t.Before(cutoff) {
			return model.JobRecord{}, true, false
		}
	}
	if t, err := time.Parse(time.RFC3339, r.ApplyStart); err == nil {
		base.ApplyOpensAt = &t
	}

	rec, err := c.JobDetails(ctx, base)
	if errors.Is(err, ErrDetailsForbidden) {
		c.log.Debug("posting details forbidden, skipped", "job_id", base.JobID)
		return model.JobRecord{}, false, false
	}
	if err != nil {
		c.log.Warn("posting details unavailable, skipped", "job_id", base.JobID, "cause", err)
		return model.JobRecord{}, false, false
	}
	return rec, false, true
}

// RecordsFromIDs builds normalised records for job IDs extracted from saved
// HTML pages. IDs whose details cannot be fetched are skipped with a
// warning, matching the containment rule for malformed source input.
func (c *Client) RecordsFromIDs(ctx context.Context, ids []string) ([]model.JobRecord, error) {
	records := make([]model.JobRecord, 0, len(ids))
	for _, id := range ids {
		base := model.JobRecord{
			JobID:  id,
			Source: model.SourceHTMLImport,
		}
		rec, err := c.JobDetails(ctx, base)
		if errors.Is(err, ErrCookiesRejected) {
			return records, err
		}
		if errors.Is(err, ErrDetailsForbidden) {
			c.log.Debug("job details forbidden, skipped", "job_id", id)
			continue
		}
		if err != nil {
			c.log.Warn("job details unavailable, skipped", "job_id", id, "cause", err)
			continue
		}
		if rec.Title == "" {
			rec.Title = "Job " + id
		}
		if rec.Employer == "" {
			rec.Employer = "Unknown"
		}
		records = append(records, rec)
	}
	return records, nil
}
