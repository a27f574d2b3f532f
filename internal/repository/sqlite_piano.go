package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/domain"
)

// SQLitePianoRepo implements PianoRepo using a SQLite database.
type SQLitePianoRepo struct {
	db db.DBTX
}

// NewSQLitePianoRepo creates a new SQLitePianoRepo.
func NewSQLitePianoRepo(db db.DBTX) *SQLitePianoRepo {
	return &SQLitePianoRepo{db: db}
}

const pianoColumns = `r.id, r.serial, r.make, r.model, r.location, r.type,
	r.last_service_date, r.next_service_date, r.service_interval_months, r.tags, r.stale,
	o.status, o.usage, o.assignment_note, o.work_note, o.observations,
	o.completed_in_campaign_id, o.completed_at, o.is_hidden, o.updated_at, o.updated_by`

const pianoFrom = `FROM piano_records r LEFT JOIN piano_overlays o ON o.piano_id = r.id`

func (r *SQLitePianoRepo) UpsertRecords(ctx context.Context, records []domain.PianoRecord, seenAt time.Time) error {
	query := `INSERT INTO piano_records (id, serial, make, model, location, type,
			last_service_date, next_service_date, service_interval_months, tags, stale, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			serial = excluded.serial,
			make = excluded.make,
			model = excluded.model,
			location = excluded.location,
			type = excluded.type,
			last_service_date = excluded.last_service_date,
			next_service_date = excluded.next_service_date,
			service_interval_months = excluded.service_interval_months,
			tags = excluded.tags,
			stale = 0,
			last_seen_at = excluded.last_seen_at`
	seen := formatSeen(seenAt)
	for _, rec := range records {
		tags, err := json.Marshal(nonNilTags(rec.Tags))
		if err != nil {
			return persistErr("encoding piano tags", err, rec.ID)
		}
		pianoType := rec.Type
		if pianoType == "" {
			pianoType = domain.TypeUpright
		}
		_, err = r.db.ExecContext(ctx, query,
			rec.ID,
			nullableString(rec.Serial),
			rec.Make,
			rec.Model,
			rec.Location,
			string(pianoType),
			nullableTimeToString(rec.LastServiceDate, dateLayout),
			nullableTimeToString(rec.NextServiceDate, dateLayout),
			rec.ServiceIntervalMonths,
			string(tags),
			seen,
		)
		if err != nil {
			return persistErr("upserting piano record", err, rec.ID)
		}
	}
	return nil
}

func (r *SQLitePianoRepo) MarkStaleNotSeenAt(ctx context.Context, seenAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piano_records SET stale = 1 WHERE stale = 0 AND last_seen_at <> ?`, formatSeen(seenAt))
	if err != nil {
		return 0, persistErr("marking stale pianos", err)
	}
	return res.RowsAffected()
}

func (r *SQLitePianoRepo) EnsureOverlays(ctx context.Context, ids []string, now time.Time) (int64, error) {
	query := `INSERT OR IGNORE INTO piano_overlays (piano_id, status, is_hidden, updated_at) VALUES (?, 'normal', 0, ?)`
	ts := formatTime(now)
	var created int64
	for _, id := range ids {
		res, err := r.db.ExecContext(ctx, query, id, ts)
		if err != nil {
			return created, persistErr("creating default overlay", err, id)
		}
		n, _ := res.RowsAffected()
		created += n
	}
	return created, nil
}

func (r *SQLitePianoRepo) ListOverlays(ctx context.Context) (map[string]domain.Overlay, error) {
	query := `SELECT piano_id, status, usage, assignment_note, work_note, observations,
			completed_in_campaign_id, completed_at, is_hidden, updated_at, updated_by
		FROM piano_overlays`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistErr("listing overlays", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Overlay)
	for rows.Next() {
		var o domain.Overlay
		var status, updatedAt string
		var usage, completedIn, completedAt sql.NullString
		var hidden int
		if err := rows.Scan(&o.PianoID, &status, &usage, &o.AssignmentNote, &o.WorkNote, &o.Observations,
			&completedIn, &completedAt, &hidden, &updatedAt, &o.UpdatedBy); err != nil {
			return nil, persistErr("scanning overlay row", err)
		}
		o.Status = domain.PianoStatus(status)
		o.Usage = usageFromNull(usage)
		o.CompletedInCampaignID = stringFromNull(completedIn)
		o.CompletedAt = parseNullableTime(completedAt, time.RFC3339)
		o.IsHidden = hidden != 0
		if o.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
			return nil, err
		}
		out[o.PianoID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating overlays", err)
	}
	return out, nil
}

func (r *SQLitePianoRepo) SaveOverlay(ctx context.Context, o *domain.Overlay) error {
	query := `INSERT INTO piano_overlays (piano_id, status, usage, assignment_note, work_note, observations,
			completed_in_campaign_id, completed_at, is_hidden, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(piano_id) DO UPDATE SET
			status = excluded.status,
			usage = excluded.usage,
			assignment_note = excluded.assignment_note,
			work_note = excluded.work_note,
			observations = excluded.observations,
			completed_in_campaign_id = excluded.completed_in_campaign_id,
			completed_at = excluded.completed_at,
			is_hidden = excluded.is_hidden,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`
	var usage any
	if o.Usage != nil {
		usage = string(*o.Usage)
	}
	_, err := r.db.ExecContext(ctx, query,
		o.PianoID,
		string(o.Status),
		usage,
		o.AssignmentNote,
		o.WorkNote,
		o.Observations,
		nullableString(o.CompletedInCampaignID),
		nullableTimeToString(o.CompletedAt, time.RFC3339),
		boolToInt(o.IsHidden),
		formatTime(o.UpdatedAt),
		o.UpdatedBy,
	)
	if err != nil {
		return persistErr("saving overlay", err, o.PianoID)
	}
	return nil
}

func (r *SQLitePianoRepo) Get(ctx context.Context, id string) (*domain.Piano, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pianoColumns+` `+pianoFrom+` WHERE r.id = ?`, id)
	p, err := scanPiano(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "piano", ID: id}
	}
	if err != nil {
		return nil, persistErr("loading piano", err, id)
	}
	return p, nil
}

func (r *SQLitePianoRepo) List(ctx context.Context, f PianoFilter) ([]*domain.Piano, error) {
	var where []string
	var args []any
	if !f.IncludeStale {
		where = append(where, `r.stale = 0`)
	}
	if !f.IncludeHidden {
		where = append(where, `COALESCE(o.is_hidden, 0) = 0`)
	}
	if len(f.IDs) > 0 {
		where = append(where, `r.id IN (`+placeholders(len(f.IDs))+`)`)
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if f.CampaignID != "" {
		where = append(where, `r.id IN (SELECT piano_id FROM campaign_pianos WHERE campaign_id = ?)`)
		args = append(args, f.CampaignID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, `COALESCE(o.status, 'normal') IN (`+placeholders(len(f.Statuses))+`)`)
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}

	query := `SELECT ` + pianoColumns + ` ` + pianoFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY r.location, r.make, r.model, r.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("listing pianos", err)
	}
	defer rows.Close()

	var pianos []*domain.Piano
	for rows.Next() {
		p, err := scanPiano(rows)
		if err != nil {
			return nil, persistErr("scanning piano row", err)
		}
		pianos = append(pianos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating pianos", err)
	}
	return pianos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPiano reads one joined record/overlay row. A missing overlay yields
// the default overlay.
func scanPiano(s rowScanner) (*domain.Piano, error) {
	var p domain.Piano
	var serial, lastService, nextService, tags sql.NullString
	var pianoType string
	var stale int
	var status, usage, assignment, work, observations sql.NullString
	var completedIn, completedAt, updatedAt, updatedBy sql.NullString
	var hidden sql.NullInt64

	err := s.Scan(
		&p.ID, &serial, &p.Make, &p.Model, &p.Location, &pianoType,
		&lastService, &nextService, &p.ServiceIntervalMonths, &tags, &stale,
		&status, &usage, &assignment, &work, &observations,
		&completedIn, &completedAt, &hidden, &updatedAt, &updatedBy,
	)
	if err != nil {
		return nil, err
	}

	p.Serial = stringFromNull(serial)
	p.Type = domain.PianoType(pianoType)
	p.LastServiceDate = parseNullableTime(lastService, dateLayout)
	p.NextServiceDate = parseNullableTime(nextService, dateLayout)
	p.Stale = stale != 0
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, err
		}
	}

	p.Overlay = domain.DefaultOverlay(p.ID)
	if status.Valid {
		p.Overlay.Status = domain.PianoStatus(status.String)
		p.Overlay.Usage = usageFromNull(usage)
		p.Overlay.AssignmentNote = assignment.String
		p.Overlay.WorkNote = work.String
		p.Overlay.Observations = observations.String
		p.Overlay.CompletedInCampaignID = stringFromNull(completedIn)
		p.Overlay.CompletedAt = parseNullableTime(completedAt, time.RFC3339)
		p.Overlay.IsHidden = hidden.Valid && hidden.Int64 != 0
		p.Overlay.UpdatedBy = updatedBy.String
		if ts := parseNullableTime(updatedAt, time.RFC3339); ts != nil {
			p.Overlay.UpdatedAt = *ts
		}
	}
	return &p, nil
}

func usageFromNull(s sql.NullString) *domain.UsageCategory {
	if !s.Valid || s.String == "" {
		return nil
	}
	u := domain.UsageCategory(s.String)
	return &u
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
