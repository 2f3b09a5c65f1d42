// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path ids, list filters, dashboard query parameters and request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"activitylog/internal/core"
	"activitylog/internal/records"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var (
	errInvalidID   = errors.New("invalid activity id")
	errInvalidBody = errors.New("invalid request body")
)

// DashboardParams holds the query parameters of the aggregate endpoints.
// Empty values mean the endpoint default.
type DashboardParams struct {
	Period string
	From   string
	To     string
}

// ParseDashboardParams extracts period, from and to from query parameters.
func ParseDashboardParams(query url.Values) DashboardParams {
	return DashboardParams{
		Period: strings.TrimSpace(query.Get("period")),
		From:   strings.TrimSpace(query.Get("from")),
		To:     strings.TrimSpace(query.Get("to")),
	}
}

// ParseActivityFilter extracts the list filter. Validation happens in the
// service so every backend rejects the same values.
func ParseActivityFilter(query url.Values) records.Filter {
	return records.Filter{
		Status:    sanitizeInput(query.Get("status")),
		Personnel: sanitizeInput(query.Get("personnel")),
	}
}

// ParseActivityID reads the {id} path value.
func ParseActivityID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return id, nil
}

// DecodeJSONBody decodes a single JSON value into dst.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	return nil
}

// RequestBodyParser reads a body that may be JSON or form-encoded. Login
// uses it so both scripted clients and plain HTML forms can sign in.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || strings.Contains(p.contentType, "json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeRecord cleans the free-text fields of a record received from a
// client.
func sanitizeRecord(r core.ActivityRecord) core.ActivityRecord {
	r.EndUser = sanitizeInput(r.EndUser)
	r.CustomerName = sanitizeInput(r.CustomerName)
	r.VendorName = sanitizeInput(r.VendorName)
	r.WorkLocation = sanitizeInput(r.WorkLocation)
	r.Personnel = sanitizeInput(r.Personnel)
	r.Activity = sanitizeInput(r.Activity)
	r.InvoiceNumber = sanitizeInput(r.InvoiceNumber)
	return r
}

func sanitizePatch(p core.ActivityPatch) core.ActivityPatch {
	for _, f := range []*string{p.EndUser, p.CustomerName, p.VendorName, p.WorkLocation, p.Personnel, p.Activity, p.InvoiceNumber} {
		if f != nil {
			*f = sanitizeInput(*f)
		}
	}
	return p
}
