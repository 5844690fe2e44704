package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/money"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_name, a.patient_id, a.patient_email, a.doctor_id, d.name,
	a.specialty, a.date, a.time, a.fee::text, a.status, a.cancellation_reason,
	a.created_at, a.updated_at`

const apptFrom = ` FROM appointments a JOIN doctors d ON d.id = a.doctor_id`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_name, patient_id, patient_email, doctor_id,
			specialty, date, time, fee, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientName, a.PatientID, a.PatientEmail, a.DoctorID,
		a.Specialty, a.Date, a.Time, a.Fee.String(), string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1 FOR UPDATE OF a`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			patient_name=$2, patient_id=$3, patient_email=$4, doctor_id=$5, specialty=$6,
			date=$7, time=$8, fee=$9::numeric, status=$10, cancellation_reason=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientName, a.PatientID, a.PatientEmail, a.DoctorID, a.Specialty,
		a.Date, a.Time, a.Fee.String(), string(a.Status), a.CancellationReason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, filter ListFilter) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if filter.PatientName != "" {
		where += fmt.Sprintf(` AND lower(a.patient_name) = lower($%d)`, idx)
		args = append(args, filter.PatientName)
		idx++
	}
	if filter.PatientID != "" {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, filter.PatientID)
		idx++
	}
	if filter.DoctorID != "" {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, filter.DoctorID)
		idx++
	}
	if filter.DoctorEmail != "" {
		where += fmt.Sprintf(` AND lower(d.email) = lower($%d)`, idx)
		args = append(args, filter.DoctorEmail)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, string(filter.Status))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := ` ORDER BY a.created_at DESC, a.id DESC`
	if filter.Sort == SortDate {
		order = ` ORDER BY a.date ASC, a.time ASC, a.id ASC`
	}
	query := `SELECT ` + apptCols + apptFrom + where + order +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func (r *appointmentRepoPG) Summary(ctx context.Context, doctorID string) ([]StatusTotal, error) {
	query := `SELECT status, COUNT(*), COALESCE(SUM(fee), 0)::text FROM appointments`
	var args []interface{}
	if doctorID != "" {
		query += ` WHERE doctor_id = $1`
		args = append(args, doctorID)
	}
	query += ` GROUP BY status`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []StatusTotal
	for rows.Next() {
		var st StatusTotal
		var status, fees string
		if err := rows.Scan(&status, &st.Count, &fees); err != nil {
			return nil, err
		}
		amount, err := money.Parse(fees)
		if err != nil {
			return nil, fmt.Errorf("summary fees: %w", err)
		}
		st.Status = Status(status)
		st.Fees = amount
		totals = append(totals, st)
	}
	return totals, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var fee, status string
	if err := row.Scan(&a.ID, &a.PatientName, &a.PatientID, &a.PatientEmail, &a.DoctorID, &a.DoctorName,
		&a.Specialty, &a.Date, &a.Time, &fee, &status, &a.CancellationReason,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, db.Classify(err)
	}
	amount, err := money.Parse(fee)
	if err != nil {
		return nil, fmt.Errorf("appointment %s fee: %w", a.ID, err)
	}
	a.Fee = amount
	a.Status = Status(status)
	a.Date = a.Date.UTC()
	return &a, nil
}
