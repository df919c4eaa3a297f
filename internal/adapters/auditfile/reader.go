package auditfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const maxLineBytes = 1 << 20

type record struct {
	EventID     string          `json:"event_id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	User        string          `json:"user"`
	Client      string          `json:"client"`
	Action      string          `json:"action"`
	FlowName    string          `json:"flow_name"`
	Description string          `json:"description"`
	URN         string          `json:"urn"`
}

// Read parses a JSON Lines audit export. Blank lines are skipped. Errors
// carry the 1-based line number.
func Read(r io.Reader) ([]domain.AuditEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		events []domain.AuditEvent
		line   int
	)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		event, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return events, nil
}

func parseLine(raw []byte) (domain.AuditEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("decode audit record: %w", err)
	}

	action := domain.AuditAction(strings.TrimSpace(rec.Action))
	if !action.Valid() {
		return domain.AuditEvent{}, fmt.Errorf("%w: unknown audit action %q", domain.ErrInvalidFilter, rec.Action)
	}
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return domain.AuditEvent{}, err
	}

	return domain.AuditEvent{
		EventID:     rec.EventID,
		Timestamp:   ts,
		User:        rec.User,
		Client:      rec.Client,
		Action:      action,
		FlowName:    rec.FlowName,
		Description: rec.Description,
		URN:         rec.URN,
	}, nil
}

// parseTimestamp accepts an RFC 3339 string or a number of unix seconds,
// fractions included.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		return ts.UTC(), nil
	}
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC 3339 or unix seconds: %s", raw)
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC(), nil
}
