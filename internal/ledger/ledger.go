// Package ledger provides an append-only history of animation runs and
// failed commands.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/eventbus"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventAnimationStarted EventType = "animation_started"
	EventAnimationStopped EventType = "animation_stopped"
	EventCommandFailed    EventType = "command_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
	Source    string         `json:"source,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, runID, source string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.Exec(`
		INSERT INTO event_ledger (event_type, timestamp, payload, source, run_id)
		VALUES (?, ?, ?, ?, ?)
	`, string(eventType), l.now().UTC().Unix(), string(payloadJSON), source, runID)

	return err
}

// GetByType returns entries filtered by event type, newest first
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, run_id
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByRun returns every entry recorded for one animation run, oldest first
func (l *Ledger) GetByRun(runID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, run_id
		FROM event_ledger
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByTimeRange returns entries within a time range, newest first
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, run_id
		FROM event_ledger
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.Unix(), end.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).Unix()
	result, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Subscribe records animation starts, stops and failed commands published on the bus.
func (l *Ledger) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(l.record,
		eventbus.EventTypeAnimationStarted,
		eventbus.EventTypeAnimationStopped,
		eventbus.EventTypeCommandFailed,
	)
}

func (l *Ledger) record(event eventbus.Event) {
	runID, _ := event.Data["run_id"].(string)
	source, _ := event.Data["source"].(string)

	payload := make(map[string]any, len(event.Data))
	for k, v := range event.Data {
		if k == "run_id" || k == "source" {
			continue
		}
		payload[k] = v
	}

	if err := l.Append(EventType(event.Type), runID, source, payload); err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to append ledger entry")
	}
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, source, runID sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &payloadStr, &source, &runID); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Source = source.String
		entry.RunID = runID.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
