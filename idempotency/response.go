package idempotency

import (
	"fmt"

	"newsletter-backend/models"
)

// Response is the HTTP-like result of an effect: what gets persisted on first
// execution and replayed verbatim on every retry. Headers keep insertion order
// and repeated names; Body is uninterpreted bytes.
type Response struct {
	StatusCode int
	Headers    []models.HeaderPair
	Body       []byte
}

// Validate rejects responses that must never reach the store: status codes
// outside 100-599 and empty or non-token header names.
func (r Response) Validate() error {
	if r.StatusCode < 100 || r.StatusCode > 599 {
		return fmt.Errorf("%w: status code %d out of range", ErrMalformedResponse, r.StatusCode)
	}
	for _, h := range r.Headers {
		if !validHeaderName(h.Name) {
			return fmt.Errorf("%w: invalid header name %q", ErrMalformedResponse, h.Name)
		}
	}
	return nil
}

// validHeaderName checks for RFC 7230 token characters.
func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '!' || c == '#' || c == '$' || c == '%' || c == '&' ||
			c == '\'' || c == '*' || c == '+' || c == '-' || c == '.' ||
			c == '^' || c == '_' || c == '`' || c == '|' || c == '~':
		default:
			return false
		}
	}
	return true
}

// encodeRecord maps a response onto the flat columns of an idempotency row.
func encodeRecord(r Response) (status int16, headers models.HeaderPairs, body []byte) {
	headers = make(models.HeaderPairs, 0, len(r.Headers))
	for _, h := range r.Headers {
		value := make([]byte, len(h.Value))
		copy(value, h.Value)
		headers = append(headers, models.HeaderPair{Name: h.Name, Value: value})
	}
	body = make([]byte, len(r.Body))
	copy(body, r.Body)
	return int16(r.StatusCode), headers, body
}

// decodeRecord rebuilds the response saved on a complete row. The ordered
// multiset of headers and the body come back exactly as stored.
func decodeRecord(rec *models.IdempotencyRecord) (Response, error) {
	if !rec.Complete() {
		return Response{}, fmt.Errorf("idempotency record (%s, %s) has no saved response", rec.UserID, rec.IdempotencyKey)
	}
	headers := make([]models.HeaderPair, 0, len(rec.ResponseHeaders))
	for _, h := range rec.ResponseHeaders {
		value := make([]byte, len(h.Value))
		copy(value, h.Value)
		headers = append(headers, models.HeaderPair{Name: h.Name, Value: value})
	}
	body := make([]byte, len(rec.ResponseBody))
	copy(body, rec.ResponseBody)
	return Response{
		StatusCode: int(*rec.ResponseStatusCode),
		Headers:    headers,
		Body:       body,
	}, nil
}
