package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/models"
	"github.com/lib/pq"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store on database/sql with lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type postgresTx struct {
	tx *sql.Tx
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsValueTooLong reports a string rejected for exceeding its column width.
func IsValueTooLong(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22001"
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil || v.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// tutors
// ---------------------------------------------------------------------------

const selectTutor = `
	SELECT t.id, t.user_id, u.email, t.titles_before, t.first_name, t.last_name, t.titles_after,
		t.intro, t.sex, t.slovak, t.home, t.commute, t.phone, t.phone_verified,
		t.notice_any, t.notice_suited, t.notice_aimed, t.is_active, t.credit, t.reference_code,
		t.pay_later_demand_id, t.pay_later_since, t.version, t.created_at, t.updated_at,
		ARRAY(SELECT tt.town_id FROM tutor_towns tt WHERE tt.tutor_id = t.id ORDER BY tt.town_id)
	FROM tutors t
	JOIN users u ON u.id = t.user_id`

func scanTutor(row rowScanner) (*models.Tutor, error) {
	var (
		t        models.Tutor
		phone    sql.NullString
		refCode  sql.NullInt64
		payLater sql.NullInt64
		since    sql.NullTime
		towns    []int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Email, &t.TitlesBefore, &t.FirstName, &t.LastName, &t.TitlesAfter,
		&t.Intro, &t.Sex, &t.Slovak, &t.Home, &t.Commute, &phone, &t.PhoneVerified,
		&t.Notices.Any, &t.Notices.Suited, &t.Notices.Aimed, &t.Active, &t.Credit, &refCode,
		&payLater, &since, &t.Version, &t.CreatedAt, &t.UpdatedAt,
		pq.Array(&towns))
	if err != nil {
		return nil, err
	}
	t.Phone = phone.String
	t.ReferenceCode = refCode.Int64
	t.PayLaterDemandID = int64Ptr(payLater)
	t.PayLaterSince = timePtr(since)
	t.Towns = towns
	return &t, nil
}

func loadTeaches(ctx context.Context, q querier, tutors ...*models.Tutor) error {
	if len(tutors) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(tutors))
	byID := make(map[int64]*models.Tutor, len(tutors))
	for _, t := range tutors {
		ids = append(ids, t.ID)
		byID[t.ID] = t
	}

	rows, err := q.QueryContext(ctx, `
		SELECT tutor_id, subject_id, level_id, price
		FROM tutor_teaches
		WHERE tutor_id = ANY($1)
		ORDER BY tutor_id, subject_id, level_id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tutorID int64
		var c models.Capability
		if err := rows.Scan(&tutorID, &c.SubjectID, &c.LevelID, &c.Price); err != nil {
			return err
		}
		if t, ok := byID[tutorID]; ok {
			t.Teaches = append(t.Teaches, c)
		}
	}
	return rows.Err()
}

func getTutor(ctx context.Context, q querier, query string, arg any) (*models.Tutor, error) {
	t, err := scanTutor(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadTeaches(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

func listTutors(ctx context.Context, q querier, query string, args ...any) ([]*models.Tutor, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tutors []*models.Tutor
	for rows.Next() {
		t, err := scanTutor(rows)
		if err != nil {
			return nil, err
		}
		tutors = append(tutors, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadTeaches(ctx, q, tutors...); err != nil {
		return nil, err
	}
	return tutors, nil
}

func (s *PostgresStore) GetTutor(ctx context.Context, id int64) (*models.Tutor, error) {
	return getTutor(ctx, s.db, selectTutor+` WHERE t.id = $1`, id)
}

func (s *PostgresStore) FindTutorByReferenceCode(ctx context.Context, code int64) (*models.Tutor, error) {
	return getTutor(ctx, s.db, selectTutor+` WHERE t.reference_code = $1`, code)
}

func (s *PostgresStore) GetCredentials(ctx context.Context, email string) (int64, string, error) {
	var id int64
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, u.password
		FROM users u
		JOIN tutors t ON t.user_id = u.id
		WHERE u.email = $1`, strings.ToLower(email)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	return id, hash, err
}

func (s *PostgresStore) ListActiveTutors(ctx context.Context) ([]*models.Tutor, error) {
	return listTutors(ctx, s.db, selectTutor+` WHERE t.is_active ORDER BY t.id`)
}

func (s *PostgresStore) ListPayLaterDebtors(ctx context.Context, since time.Time) ([]*models.Tutor, error) {
	return listTutors(ctx, s.db, selectTutor+`
		WHERE t.pay_later_demand_id IS NOT NULL AND t.pay_later_since < $1
		ORDER BY t.pay_later_since`, since)
}

func (s *PostgresStore) UpdateTutorProfile(ctx context.Context, t *models.Tutor) error {
	return s.RunInTx(ctx, func(tx Tx) error {
		q := tx.(*postgresTx).tx

		res, err := q.ExecContext(ctx, `
			UPDATE tutors
			SET titles_before = $1, first_name = $2, last_name = $3, titles_after = $4,
				intro = $5, sex = $6, slovak = $7, home = $8, commute = $9, updated_at = $10
			WHERE id = $11`,
			t.TitlesBefore, t.FirstName, t.LastName, t.TitlesAfter,
			t.Intro, t.Sex, t.Slovak, t.Home, t.Commute, time.Now(), t.ID)
		if err != nil {
			return err
		}
		if err := expectOneRow(res, ErrNotFound); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM tutor_towns WHERE tutor_id = $1`, t.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO tutor_towns (tutor_id, town_id)
			SELECT $1, unnest($2::bigint[])`, t.ID, pq.Array(t.Towns)); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM tutor_teaches WHERE tutor_id = $1`, t.ID); err != nil {
			return err
		}
		for _, c := range t.Teaches {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO tutor_teaches (tutor_id, subject_id, level_id, price)
				VALUES ($1, $2, $3, $4)`, t.ID, c.SubjectID, c.LevelID, c.Price); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) UpdateNoticePreferences(ctx context.Context, tutorID int64, prefs models.NoticePreferences) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tutors
		SET notice_any = $1, notice_suited = $2, notice_aimed = $3, updated_at = $4
		WHERE id = $5`, prefs.Any, prefs.Suited, prefs.Aimed, time.Now(), tutorID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (s *PostgresStore) SetTutorPhone(ctx context.Context, tutorID int64, phone string, verified bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tutors SET phone = $1, phone_verified = $2, updated_at = $3 WHERE id = $4`,
		nullString(phone), verified, time.Now(), tutorID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (s *PostgresStore) SetTutorActive(ctx context.Context, tutorID int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tutors SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), tutorID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (t *postgresTx) InsertUser(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password) VALUES ($1, $2) RETURNING id`,
		strings.ToLower(email), passwordHash).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

func (t *postgresTx) InsertTutor(ctx context.Context, tutor *models.Tutor) error {
	now := time.Now()
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO tutors (user_id, first_name, last_name, notice_any, notice_suited, notice_aimed,
			is_active, credit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, version`,
		tutor.UserID, tutor.FirstName, tutor.LastName,
		tutor.Notices.Any, tutor.Notices.Suited, tutor.Notices.Aimed,
		tutor.Active, tutor.Credit, now).Scan(&tutor.ID, &tutor.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	tutor.CreatedAt, tutor.UpdatedAt = now, now
	return nil
}

func (t *postgresTx) SetReferenceCode(ctx context.Context, tutorID, code int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE tutors SET reference_code = $1 WHERE id = $2`, code, tutorID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (t *postgresTx) LockTutor(ctx context.Context, id int64) (*models.Tutor, error) {
	return getTutor(ctx, t.tx, selectTutor+` WHERE t.id = $1 FOR UPDATE OF t`, id)
}

func (t *postgresTx) UpdateTutorCredit(ctx context.Context, tutor *models.Tutor) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tutors
		SET credit = $1, pay_later_demand_id = $2, pay_later_since = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		tutor.Credit, nullInt64(tutor.PayLaterDemandID), nullTime(tutor.PayLaterSince), time.Now(),
		tutor.ID, tutor.Version)
	if err != nil {
		return err
	}
	if err := expectOneRow(res, fmt.Errorf("%w for tutor %d", ErrVersionConflict, tutor.ID)); err != nil {
		return err
	}
	tutor.Version++
	return nil
}

// ---------------------------------------------------------------------------
// catalog
// ---------------------------------------------------------------------------

func (s *PostgresStore) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	var sub models.Subject
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, scheme_id FROM subjects WHERE id = $1`, id).
		Scan(&sub.ID, &sub.Name, &sub.Slug, &sub.SchemeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) GetLevel(ctx context.Context, id int64) (*models.Level, error) {
	var lvl models.Level
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sort_order, scheme_id FROM levels WHERE id = $1`, id).
		Scan(&lvl.ID, &lvl.Name, &lvl.Order, &lvl.SchemeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lvl, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, scheme_id FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Slug, &sub.SchemeID); err != nil {
			return nil, err
		}
		subjects = append(subjects, &sub)
	}
	return subjects, rows.Err()
}

// ---------------------------------------------------------------------------
// demands
// ---------------------------------------------------------------------------

const selectDemand = `
	SELECT d.id, d.slug, d.status, d.subject_id, d.level_id, d.lessons, d.students,
		d.first_name, d.last_name, d.email, d.subject_description, d.time_description,
		d.commute, d.sex_required, d.slovak, d.discount, d.taken_by, d.taken_at,
		d.posted_at, d.updated_at,
		ARRAY(SELECT dt.town_id FROM demand_towns dt WHERE dt.demand_id = d.id ORDER BY dt.town_id),
		ARRAY(SELECT tg.tutor_id FROM demand_targets tg WHERE tg.demand_id = d.id ORDER BY tg.tutor_id)
	FROM demands d`

func scanDemand(row rowScanner) (*models.Demand, error) {
	var (
		d       models.Demand
		takenBy sql.NullInt64
		takenAt sql.NullTime
		towns   []int64
		targets []int64
	)
	err := row.Scan(&d.ID, &d.Slug, &d.Status, &d.SubjectID, &d.LevelID, &d.Lessons, &d.Students,
		&d.FirstName, &d.LastName, &d.Email, &d.SubjectDescription, &d.TimeDescription,
		&d.Commute, &d.SexRequired, &d.Slovak, &d.Discount, &takenBy, &takenAt,
		&d.PostedAt, &d.UpdatedAt,
		pq.Array(&towns), pq.Array(&targets))
	if err != nil {
		return nil, err
	}
	d.TakenBy = int64Ptr(takenBy)
	d.TakenAt = timePtr(takenAt)
	d.Towns = towns
	d.Targets = targets
	return &d, nil
}

func getDemand(ctx context.Context, q querier, query string, arg any) (*models.Demand, error) {
	d, err := scanDemand(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) CreateDemand(ctx context.Context, d *models.Demand) error {
	return s.RunInTx(ctx, func(tx Tx) error {
		q := tx.(*postgresTx).tx

		err := q.QueryRowContext(ctx, `
			INSERT INTO demands (slug, status, subject_id, level_id, lessons, students,
				first_name, last_name, email, subject_description, time_description,
				commute, sex_required, slovak, discount, posted_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
			RETURNING id`,
			d.Slug, d.Status, d.SubjectID, d.LevelID, d.Lessons, d.Students,
			d.FirstName, d.LastName, d.Email, d.SubjectDescription, d.TimeDescription,
			d.Commute, d.SexRequired, d.Slovak, d.Discount, d.PostedAt).Scan(&d.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO demand_towns (demand_id, town_id)
			SELECT $1, unnest($2::bigint[])`, d.ID, pq.Array(d.Towns)); err != nil {
			return err
		}
		if len(d.Targets) > 0 {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO demand_targets (demand_id, tutor_id)
				SELECT $1, unnest($2::bigint[])`, d.ID, pq.Array(d.Targets)); err != nil {
				return err
			}
		}
		d.UpdatedAt = d.PostedAt
		return nil
	})
}

func (s *PostgresStore) GetDemand(ctx context.Context, id int64) (*models.Demand, error) {
	return getDemand(ctx, s.db, selectDemand+` WHERE d.id = $1`, id)
}

func (s *PostgresStore) GetDemandBySlug(ctx context.Context, slug string) (*models.Demand, error) {
	return getDemand(ctx, s.db, selectDemand+` WHERE d.slug = $1`, slug)
}

// UpdateDemandDetails rewrites the student-editable fields. It refuses taken
// demands by reporting ErrNotFound.
func (s *PostgresStore) UpdateDemandDetails(ctx context.Context, d *models.Demand) error {
	return s.RunInTx(ctx, func(tx Tx) error {
		q := tx.(*postgresTx).tx

		res, err := q.ExecContext(ctx, `
			UPDATE demands
			SET subject_id = $1, level_id = $2, lessons = $3, students = $4,
				first_name = $5, last_name = $6, email = $7, subject_description = $8,
				time_description = $9, commute = $10, sex_required = $11, slovak = $12, updated_at = $13
			WHERE id = $14 AND taken_by IS NULL`,
			d.SubjectID, d.LevelID, d.Lessons, d.Students,
			d.FirstName, d.LastName, d.Email, d.SubjectDescription,
			d.TimeDescription, d.Commute, d.SexRequired, d.Slovak, d.UpdatedAt, d.ID)
		if err != nil {
			return err
		}
		if err := expectOneRow(res, ErrNotFound); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM demand_towns WHERE demand_id = $1`, d.ID); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO demand_towns (demand_id, town_id)
			SELECT $1, unnest($2::bigint[])`, d.ID, pq.Array(d.Towns))
		return err
	})
}

func (s *PostgresStore) SetDemandStatus(ctx context.Context, id int64, status models.DemandStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE demands SET status = $1, updated_at = $2 WHERE id = $3 AND taken_by IS NULL`,
		status, at, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (s *PostgresStore) SetDemandDiscount(ctx context.Context, id int64, discount int, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE demands SET discount = $1, updated_at = $2 WHERE id = $3 AND taken_by IS NULL`,
		discount, at, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (s *PostgresStore) ListDemands(ctx context.Context, filter DemandFilter) ([]*models.Demand, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]int64, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = int64(st)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("d.status = ANY($%d)", len(args)))
	}
	if filter.TakenBy > 0 {
		args = append(args, filter.TakenBy)
		where = append(where, fmt.Sprintf("d.taken_by = $%d", len(args)))
	}
	if !filter.PostedSince.IsZero() {
		args = append(args, filter.PostedSince)
		where = append(where, fmt.Sprintf("d.posted_at >= $%d", len(args)))
	}

	query := selectDemand
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.posted_at DESC, d.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var demands []*models.Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		demands = append(demands, d)
	}
	return demands, rows.Err()
}

func (t *postgresTx) LockDemand(ctx context.Context, id int64) (*models.Demand, error) {
	return getDemand(ctx, t.tx, selectDemand+` WHERE d.id = $1 FOR UPDATE OF d`, id)
}

// MarkDemandTaken flips an active, untaken demand to taken. Any other state
// is reported as ErrDemandAlreadyTaken.
func (t *postgresTx) MarkDemandTaken(ctx context.Context, demandID, tutorID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE demands
		SET status = 2, taken_by = $1, taken_at = $2, updated_at = $2
		WHERE id = $3 AND status = 0 AND taken_by IS NULL`, tutorID, at, demandID)
	if err != nil {
		return err
	}
	return expectOneRow(res, models.ErrDemandAlreadyTaken)
}

// ---------------------------------------------------------------------------
// ledger
// ---------------------------------------------------------------------------

func (t *postgresTx) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (entry_type, tutor_id, amount, opening_balance, closing_balance,
			bank_transaction_id, demand_id, reason, comment, pay_later, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		string(e.Type), e.TutorID, e.Amount, e.OpeningBalance, e.ClosingBalance,
		nullInt64(e.BankTransactionID), nullInt64(e.DemandID), e.Reason, e.Comment, e.PayLater, e.CreatedAt).
		Scan(&e.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) ListLedgerEntries(ctx context.Context, tutorID int64) ([]*models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_type, tutor_id, amount, opening_balance, closing_balance,
			bank_transaction_id, demand_id, reason, comment, pay_later, created_at
		FROM ledger_entries
		WHERE tutor_id = $1
		ORDER BY id`, tutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var (
			e        models.LedgerEntry
			entry    string
			bankTxID sql.NullInt64
			demandID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &entry, &e.TutorID, &e.Amount, &e.OpeningBalance, &e.ClosingBalance,
			&bankTxID, &demandID, &e.Reason, &e.Comment, &e.PayLater, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = models.EntryType(entry)
		e.BankTransactionID = int64Ptr(bankTxID)
		e.DemandID = int64Ptr(demandID)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// bank statement sync
// ---------------------------------------------------------------------------

func (s *PostgresStore) GetSyncCursor(ctx context.Context) (*models.SyncCursor, error) {
	var c models.SyncCursor
	err := s.db.QueryRowContext(ctx, `SELECT last_id, last_poll_at FROM sync_cursor WHERE id = 1`).
		Scan(&c.LastID, &c.LastPollAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LockSyncCursor creates the cursor row on first use and locks it.
func (t *postgresTx) LockSyncCursor(ctx context.Context, initialLastID int64) (*models.SyncCursor, error) {
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_cursor (id, last_id, last_poll_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING`, initialLastID, time.Unix(0, 0).UTC()); err != nil {
		return nil, err
	}

	var c models.SyncCursor
	err := t.tx.QueryRowContext(ctx, `
		SELECT last_id, last_poll_at FROM sync_cursor WHERE id = 1 FOR UPDATE`).
		Scan(&c.LastID, &c.LastPollAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *postgresTx) SaveSyncCursor(ctx context.Context, c *models.SyncCursor) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sync_cursor SET last_id = $1, last_poll_at = $2 WHERE id = 1`, c.LastID, c.LastPollAt)
	if err != nil {
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func (t *postgresTx) InsertAccountRequest(ctx context.Context, r *models.AccountRequest) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO account_requests (account_id, opening_balance, closing_balance, date_start, date_end,
			id_from, id_to, id_last_download, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.AccountID, r.OpeningBalance, r.ClosingBalance, nullTime(r.DateStart), nullTime(r.DateEnd),
		nullInt64(r.IDFrom), nullInt64(r.IDTo), nullInt64(r.IDLastDownload), r.CreatedAt).Scan(&r.ID)
}

func (t *postgresTx) InsertBankTransaction(ctx context.Context, b *models.BankTransaction) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bank_transactions (id, account_request_id, date, amount, currency, counterparty,
			counterparty_name, bank_code, bank_name, constant_symbol, variable_symbol, specific_symbol,
			user_identification, message, transaction_type, author, specification, comment, bic,
			command_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		b.ID, b.AccountRequestID, nullTime(&b.Date), b.Amount, b.Currency, b.Counterparty,
		b.CounterpartyName, b.BankCode, b.BankName, b.ConstantSymbol, b.VariableSymbol, b.SpecificSymbol,
		b.UserIdentification, b.Message, b.Type, b.Author, b.Specification, b.Comment, b.BIC,
		nullInt64(b.CommandID), b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) ListUnlinkedBankTransactions(ctx context.Context, limit int) ([]*models.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.account_request_id, b.date, b.amount, b.currency, b.counterparty,
			b.counterparty_name, b.bank_code, b.bank_name, b.constant_symbol, b.variable_symbol,
			b.specific_symbol, b.user_identification, b.message, b.transaction_type, b.author,
			b.specification, b.comment, b.bic, b.command_id, b.created_at
		FROM bank_transactions b
		WHERE b.amount > 0 AND b.variable_symbol <> ''
			AND NOT EXISTS (SELECT 1 FROM ledger_entries l WHERE l.bank_transaction_id = b.id)
		ORDER BY b.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.BankTransaction
	for rows.Next() {
		var (
			b         models.BankTransaction
			date      sql.NullTime
			commandID sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.AccountRequestID, &date, &b.Amount, &b.Currency, &b.Counterparty,
			&b.CounterpartyName, &b.BankCode, &b.BankName, &b.ConstantSymbol, &b.VariableSymbol,
			&b.SpecificSymbol, &b.UserIdentification, &b.Message, &b.Type, &b.Author,
			&b.Specification, &b.Comment, &b.BIC, &commandID, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Date = date.Time
		b.CommandID = int64Ptr(commandID)
		out = append(out, &b)
	}
	return out, rows.Err()
}
