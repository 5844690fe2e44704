package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/money"
)

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, name, email, specialty, experience, fees, education,
	address1, address2, about_me, image, user_id, created_at, updated_at`

// Create relies on the doctors_email_key and doctors_user_id_key constraints
// and the users foreign key; violations come back as db.ConstraintError.
func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, name, email, specialty, experience, fees, education,
			address1, address2, about_me, image, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Email, d.Specialty, d.Experience, d.Fees.String(), d.Education,
		d.Address1, d.Address2, d.AboutMe, d.Image, d.UserID,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Classify(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE lower(email) = lower($1)`, email))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET
			name=$2, email=$3, specialty=$4, experience=$5, fees=$6, education=$7,
			address1=$8, address2=$9, about_me=$10, image=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at, user_id`,
		d.ID, d.Name, d.Email, d.Specialty, d.Experience, d.Fees.String(), d.Education,
		d.Address1, d.Address2, d.AboutMe, d.Image,
	).Scan(&d.CreatedAt, &d.UpdatedAt, &d.UserID)
	return db.Classify(err)
}

func (r *doctorRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if filter.Specialty != "" {
		where += fmt.Sprintf(` AND lower(specialty) = lower($%d)`, idx)
		args = append(args, filter.Specialty)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + doctorCols + ` FROM doctors` + where +
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var fees string
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Specialty, &d.Experience, &fees, &d.Education,
		&d.Address1, &d.Address2, &d.AboutMe, &d.Image, &d.UserID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, db.Classify(err)
	}
	amount, err := money.Parse(fees)
	if err != nil {
		return nil, fmt.Errorf("doctor %s fees: %w", d.ID, err)
	}
	d.Fees = amount
	return &d, nil
}
