package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/validate"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, name, email, phone, birth_date, gender, address, about_me, image, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	birth, err := time.Parse(validate.DateLayout, p.BirthDate)
	if err != nil {
		return fmt.Errorf("patient birth date: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, birth_date, gender, address, about_me, image)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Email, p.Phone, birth, p.Gender, p.Address, p.AboutMe, p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	birth, err := time.Parse(validate.DateLayout, p.BirthDate)
	if err != nil {
		return fmt.Errorf("patient birth date: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name=$2, email=$3, phone=$4, birth_date=$5, gender=$6, address=$7, about_me=$8, image=$9,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Email, p.Phone, birth, p.Gender, p.Address, p.AboutMe, p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth time.Time
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &birth, &p.Gender, &p.Address,
		&p.AboutMe, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, db.Classify(err)
	}
	p.BirthDate = birth.Format(validate.DateLayout)
	return &p, nil
}
