package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/pianotech/tournee/internal/db"
	"github.com/pianotech/tournee/internal/domain"
)

// SQLiteCampaignRepo implements CampaignRepo using a SQLite database.
// Top pianos are stored as a flag on the membership row, so removing a
// member removes its priority flag with it.
type SQLiteCampaignRepo struct {
	db db.DBTX
}

// NewSQLiteCampaignRepo creates a new SQLiteCampaignRepo.
func NewSQLiteCampaignRepo(db db.DBTX) *SQLiteCampaignRepo {
	return &SQLiteCampaignRepo{db: db}
}

const campaignColumns = `id, name, start_date, end_date, status, institution,
	responsible_technician, notes, created_at, updated_at, created_by`

func (r *SQLiteCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	query := `INSERT INTO campaigns (` + campaignColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.StartDate.Format(dateLayout),
		c.EndDate.Format(dateLayout),
		string(c.Status),
		c.Institution,
		nullableString(c.ResponsibleTechnician),
		nullableString(c.Notes),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
		c.CreatedBy,
	)
	if err != nil {
		return persistErr("inserting campaign", err, c.ID)
	}
	return r.writeMembers(ctx, c)
}

func (r *SQLiteCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "campaign", ID: id}
	}
	if err != nil {
		return nil, persistErr("loading campaign", err, id)
	}
	if err := r.loadMembers(ctx, []*domain.Campaign{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *SQLiteCampaignRepo) List(ctx context.Context, f CampaignFilter) ([]*domain.Campaign, error) {
	var where []string
	var args []any
	if f.Institution != "" {
		where = append(where, `institution = ?`)
		args = append(args, f.Institution)
	}
	if len(f.Statuses) > 0 {
		where = append(where, `status IN (`+placeholders(len(f.Statuses))+`)`)
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.PianoID != "" {
		where = append(where, `id IN (SELECT campaign_id FROM campaign_pianos WHERE piano_id = ?)`)
		args = append(args, f.PianoID)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY start_date, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("listing campaigns", err)
	}
	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			rows.Close()
			return nil, persistErr("scanning campaign row", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, persistErr("iterating campaigns", err)
	}
	rows.Close()

	if err := r.loadMembers(ctx, campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Update rewrites the campaign row, its membership and its assistants.
func (r *SQLiteCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	query := `UPDATE campaigns SET name = ?, start_date = ?, end_date = ?, status = ?, institution = ?,
			responsible_technician = ?, notes = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		c.Name,
		c.StartDate.Format(dateLayout),
		c.EndDate.Format(dateLayout),
		string(c.Status),
		c.Institution,
		nullableString(c.ResponsibleTechnician),
		nullableString(c.Notes),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return persistErr("updating campaign", err, c.ID)
	}
	if err := requireAffected(res, "campaign", c.ID); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM campaign_pianos WHERE campaign_id = ?`, c.ID); err != nil {
		return persistErr("clearing campaign pianos", err, c.ID)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM campaign_assistants WHERE campaign_id = ?`, c.ID); err != nil {
		return persistErr("clearing campaign assistants", err, c.ID)
	}
	return r.writeMembers(ctx, c)
}

func (r *SQLiteCampaignRepo) SetStatus(ctx context.Context, id string, status domain.CampaignStatus, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), id)
	if err != nil {
		return persistErr("updating campaign status", err, id)
	}
	return requireAffected(res, "campaign", id)
}

// DemoteActive moves every active campaign of the institution except
// exceptID back to planned and returns the demoted ids.
func (r *SQLiteCampaignRepo) DemoteActive(ctx context.Context, institution, exceptID string, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM campaigns WHERE institution = ? AND status = 'active' AND id <> ? ORDER BY id`,
		institution, exceptID)
	if err != nil {
		return nil, persistErr("listing active campaigns", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, persistErr("scanning active campaign", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, persistErr("iterating active campaigns", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = 'planned', updated_at = ?
		WHERE institution = ? AND status = 'active' AND id <> ?`,
		formatTime(now), institution, exceptID)
	if err != nil {
		return nil, persistErr("demoting active campaigns", err, ids...)
	}
	return ids, nil
}

func (r *SQLiteCampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return persistErr("deleting campaign", err, id)
	}
	return requireAffected(res, "campaign", id)
}

func (r *SQLiteCampaignRepo) AddPiano(ctx context.Context, campaignID, pianoID string) error {
	query := `INSERT OR IGNORE INTO campaign_pianos (campaign_id, piano_id, is_top, position)
		VALUES (?, ?, 0, (SELECT COALESCE(MAX(position), -1) + 1 FROM campaign_pianos WHERE campaign_id = ?))`
	if _, err := r.db.ExecContext(ctx, query, campaignID, pianoID, campaignID); err != nil {
		return persistErr("adding campaign piano", err, campaignID, pianoID)
	}
	return nil
}

func (r *SQLiteCampaignRepo) RemovePiano(ctx context.Context, campaignID, pianoID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM campaign_pianos WHERE campaign_id = ? AND piano_id = ?`, campaignID, pianoID)
	if err != nil {
		return persistErr("removing campaign piano", err, campaignID, pianoID)
	}
	return nil
}

// SetTop flips the priority flag of an existing member. Non-members are a
// conflict: the flag cannot exist without the membership row.
func (r *SQLiteCampaignRepo) SetTop(ctx context.Context, campaignID, pianoID string, top bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaign_pianos SET is_top = ? WHERE campaign_id = ? AND piano_id = ?`,
		boolToInt(top), campaignID, pianoID)
	if err != nil {
		return persistErr("updating top piano", err, campaignID, pianoID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ConflictError{Entity: "campaign", ID: campaignID, Reason: "piano " + pianoID + " is not a member"}
	}
	return nil
}

func (r *SQLiteCampaignRepo) writeMembers(ctx context.Context, c *domain.Campaign) error {
	for i, pid := range c.PianoIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO campaign_pianos (campaign_id, piano_id, is_top, position) VALUES (?, ?, ?, ?)`,
			c.ID, pid, boolToInt(c.IsTop(pid)), i)
		if err != nil {
			return persistErr("inserting campaign piano", err, c.ID, pid)
		}
	}
	for _, tech := range c.AssistantTechnicians {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO campaign_assistants (campaign_id, technician) VALUES (?, ?)`, c.ID, tech)
		if err != nil {
			return persistErr("inserting campaign assistant", err, c.ID)
		}
	}
	return nil
}

// loadMembers fills PianoIDs, TopPianoIDs and AssistantTechnicians.
func (r *SQLiteCampaignRepo) loadMembers(ctx context.Context, campaigns []*domain.Campaign) error {
	if len(campaigns) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Campaign, len(campaigns))
	args := make([]any, 0, len(campaigns))
	for _, c := range campaigns {
		byID[c.ID] = c
		args = append(args, c.ID)
	}
	in := placeholders(len(campaigns))

	rows, err := r.db.QueryContext(ctx,
		`SELECT campaign_id, piano_id, is_top FROM campaign_pianos
		WHERE campaign_id IN (`+in+`) ORDER BY campaign_id, position, piano_id`, args...)
	if err != nil {
		return persistErr("listing campaign pianos", err)
	}
	for rows.Next() {
		var cid, pid string
		var top int
		if err := rows.Scan(&cid, &pid, &top); err != nil {
			rows.Close()
			return persistErr("scanning campaign piano", err)
		}
		c := byID[cid]
		c.PianoIDs = append(c.PianoIDs, pid)
		if top != 0 {
			c.TopPianoIDs = append(c.TopPianoIDs, pid)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return persistErr("iterating campaign pianos", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx,
		`SELECT campaign_id, technician FROM campaign_assistants
		WHERE campaign_id IN (`+in+`) ORDER BY campaign_id, technician`, args...)
	if err != nil {
		return persistErr("listing campaign assistants", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid, tech string
		if err := rows.Scan(&cid, &tech); err != nil {
			return persistErr("scanning campaign assistant", err)
		}
		byID[cid].AssistantTechnicians = append(byID[cid].AssistantTechnicians, tech)
	}
	if err := rows.Err(); err != nil {
		return persistErr("iterating campaign assistants", err)
	}
	return nil
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var c domain.Campaign
	var startStr, endStr, statusStr, createdStr, updatedStr string
	var responsible, notes sql.NullString

	err := s.Scan(
		&c.ID, &c.Name, &startStr, &endStr, &statusStr, &c.Institution,
		&responsible, &notes, &createdStr, &updatedStr, &c.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.CampaignStatus(statusStr)
	c.ResponsibleTechnician = stringFromNull(responsible)
	c.Notes = stringFromNull(notes)

	if c.StartDate, err = time.Parse(dateLayout, startStr); err != nil {
		return nil, err
	}
	if c.EndDate, err = time.Parse(dateLayout, endStr); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedStr); err != nil {
		return nil, err
	}
	return &c, nil
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("reading affected rows", err, id)
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
