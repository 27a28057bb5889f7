// Package remote is the typed client for the AOP service HTTP endpoints.
//
// Every call is idempotent from the caller's perspective and all-or-nothing:
// on transport failure, a non-2xx status, or an {"error": ...} payload the
// call returns a *APIError and nothing else, so the caller applies no state.
// Nothing here retries; a failed request is terminal until the user
// re-triggers it.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/aopview/pkg/debug"
	"github.com/vanderheijden86/aopview/pkg/model"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// APIError describes a failed service call.
type APIError struct {
	Endpoint string
	Status   int    // HTTP status, 0 on transport failure
	Message  string // server-provided message when available
	Err      error  // underlying transport/decode error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// Client talks to one AOP service instance.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PredictionRequest is the body of a predictions call.
type PredictionRequest struct {
	SMILES    []string       `json:"smiles"`
	Models    []string       `json:"models"`
	Metadata  map[string]any `json:"metadata"`
	Threshold float64        `json:"threshold"`
}

// PredictionRecord is one compound's scores, keyed by model name.
type PredictionRecord struct {
	SMILES string
	Scores map[string]float64
}

// CaseMIEModels fetches the model-name to target-event mapping for an MIE.
func (c *Client) CaseMIEModels(ctx context.Context, mieID string) (map[string]string, error) {
	q := url.Values{"mie_query": {mieID}}
	var out map[string]string
	if err := c.get(ctx, "/get_case_mie_model", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Predictions fetches prediction scores for the given compounds and models.
// The service returns score values as either numbers or numeric strings;
// both decode into the record's score map. Non-numeric fields other than
// "smiles" are dropped.
func (c *Client) Predictions(ctx context.Context, req PredictionRequest) ([]PredictionRecord, error) {
	var raw []map[string]any
	if err := c.post(ctx, "/get_predictions", req, &raw); err != nil {
		return nil, err
	}

	records := make([]PredictionRecord, 0, len(raw))
	for _, rec := range raw {
		out := PredictionRecord{Scores: make(map[string]float64)}
		for k, v := range rec {
			if k == "smiles" {
				if s, ok := v.(string); ok {
					out.SMILES = s
				}
				continue
			}
			if score, ok := asFloat(v); ok {
				out.Scores[k] = score
			}
		}
		records = append(records, out)
	}
	return records, nil
}

// LoadGenes fetches gene graph-element deltas for the given MIE ids.
// The returned elements are meant for Store.UpsertElements; this call never
// mutates anything itself.
func (c *Client) LoadGenes(ctx context.Context, mieIDs []string) ([]model.Element, error) {
	q := url.Values{"mies": {strings.Join(mieIDs, ",")}}
	var out []model.Element
	if err := c.get(ctx, "/load_and_show_genes", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// elementsBody is the shared POST envelope carrying a graph snapshot.
type elementsBody struct {
	CyElements []model.Element `json:"cy_elements"`
}

// AllGenes fetches the gene id list for the given graph snapshot.
func (c *Client) AllGenes(ctx context.Context, elements []model.Element) ([]string, error) {
	var out struct {
		Genes []string `json:"genes"`
		Error string   `json:"error"`
	}
	if err := c.post(ctx, "/get_all_genes", elementsBody{CyElements: elements}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &APIError{Endpoint: "/get_all_genes", Status: http.StatusOK, Message: out.Error}
	}
	return out.Genes, nil
}

// GeneTable fetches server-computed gene table rows for the given snapshot.
func (c *Client) GeneTable(ctx context.Context, elements []model.Element) ([]model.GeneRow, error) {
	var out struct {
		GeneData []model.GeneRow `json:"gene_data"`
		Error    string          `json:"error"`
	}
	if err := c.post(ctx, "/populate_gene_table", elementsBody{CyElements: elements}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &APIError{Endpoint: "/populate_gene_table", Status: http.StatusOK, Message: out.Error}
	}
	return out.GeneData, nil
}

// AOPTable fetches server-computed AOP relationship rows for the snapshot.
func (c *Client) AOPTable(ctx context.Context, elements []model.Element) ([]model.AOPRow, error) {
	var out struct {
		AOPData []model.AOPRow `json:"aop_data"`
		Error   string         `json:"error"`
	}
	if err := c.post(ctx, "/populate_aop_table", elementsBody{CyElements: elements}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &APIError{Endpoint: "/populate_aop_table", Status: http.StatusOK, Message: out.Error}
	}
	return out.AOPData, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	return c.do(req, endpoint, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("encoding request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}
	debug.LogTiming("remote "+endpoint, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := serverMessage(raw)
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// serverMessage pulls an {"error": "..."} message out of an error body.
func serverMessage(raw []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsAPIError reports whether err is a service error and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
