package scaledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const scaleColumns = "id, ip, nombre, estado, ultima_conexion, ultimo_peso, " +
	"ultima_medicion, tiempo_warning, tiempo_danger, alcanzable"

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *DB) List(ctx context.Context) ([]Scale, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+scaleColumns+" FROM scales ORDER BY created_at, nombre")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scales := make([]Scale, 0)
	for rows.Next() {
		s, err := scanScale(rows)
		if err != nil {
			return nil, err
		}
		scales = append(scales, s)
	}
	return scales, rows.Err()
}

func (d *DB) Get(ctx context.Context, id string) (Scale, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT "+scaleColumns+" FROM scales WHERE id = ?", id)
	s, err := scanScale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Scale{}, ErrNotFound
	}
	return s, err
}

// Create registers a scale. It starts in the error state until polled.
func (d *DB) Create(ctx context.Context, in ScaleInput) (Scale, error) {
	in, err := normalise(in)
	if err != nil {
		return Scale{}, err
	}

	exists, err := d.ipTaken(ctx, in.IP, "")
	if err != nil {
		return Scale{}, err
	}
	if exists {
		return Scale{}, fmt.Errorf("%w: %s", ErrDuplicateIP, in.IP)
	}

	s := Scale{
		ID:            uuid.NewString(),
		IP:            in.IP,
		Nombre:        in.Nombre,
		Estado:        EstadoError,
		TiempoWarning: in.TiempoWarning,
		TiempoDanger:  in.TiempoDanger,
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO scales (id, ip, nombre, estado, tiempo_warning, tiempo_danger, created_at) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.IP, s.Nombre, s.Estado, s.TiempoWarning, s.TiempoDanger,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return Scale{}, mapConstraint(err, in.IP)
	}
	return s, nil
}

// Update replaces the editable fields. Poll data is kept.
func (d *DB) Update(ctx context.Context, id string, in ScaleInput) (Scale, error) {
	in, err := normalise(in)
	if err != nil {
		return Scale{}, err
	}

	if _, err := d.Get(ctx, id); err != nil {
		return Scale{}, err
	}

	taken, err := d.ipTaken(ctx, in.IP, id)
	if err != nil {
		return Scale{}, err
	}
	if taken {
		return Scale{}, fmt.Errorf("%w: %s", ErrDuplicateIP, in.IP)
	}

	res, err := d.db.ExecContext(ctx,
		"UPDATE scales SET ip = ?, nombre = ?, tiempo_warning = ?, tiempo_danger = ? WHERE id = ?",
		in.IP, in.Nombre, in.TiempoWarning, in.TiempoDanger, id,
	)
	if err != nil {
		return Scale{}, mapConstraint(err, in.IP)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Scale{}, ErrNotFound
	}
	return d.Get(ctx, id)
}

func (d *DB) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM scales WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPoll stores a probe outcome. A failed probe only changes estado and
// reachability; the last good connection and measurement stay.
func (d *DB) RecordPoll(ctx context.Context, id string, r PollResult) error {
	var res sql.Result
	var err error
	if r.OK {
		res, err = d.db.ExecContext(ctx,
			"UPDATE scales SET estado = ?, ultima_conexion = ?, "+
				"ultimo_peso = COALESCE(?, ultimo_peso), "+
				"ultima_medicion = COALESCE(?, ultima_medicion), alcanzable = 1 WHERE id = ?",
			EstadoOK, r.At.UTC().UnixMilli(), nullFloat(r.Weight), nullMillis(r.MeasuredAt), id,
		)
	} else {
		res, err = d.db.ExecContext(ctx,
			"UPDATE scales SET estado = ?, alcanzable = COALESCE(?, alcanzable) WHERE id = ?",
			EstadoError, nullBool(r.Reachable), id,
		)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) ipTaken(ctx context.Context, ip, exceptID string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM scales WHERE ip = ? AND id != ?", ip, exceptID,
	).Scan(&count)
	return count > 0, err
}

func normalise(in ScaleInput) (ScaleInput, error) {
	in.IP = strings.TrimSpace(in.IP)
	in.Nombre = strings.TrimSpace(in.Nombre)
	if in.IP == "" || in.Nombre == "" {
		return in, ErrInvalid
	}
	if in.TiempoWarning <= 0 {
		in.TiempoWarning = DefaultTiempoWarning
	}
	if in.TiempoDanger <= 0 {
		in.TiempoDanger = DefaultTiempoDanger
	}
	return in, nil
}

// The pre-check covers the common case; the unique index catches races.
func mapConstraint(err error, ip string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrDuplicateIP, ip)
	}
	return err
}

func scanScale(row rowScanner) (Scale, error) {
	var s Scale
	var conexion, medicion sql.NullInt64
	var peso sql.NullFloat64
	var alcanzable sql.NullBool

	err := row.Scan(
		&s.ID, &s.IP, &s.Nombre, &s.Estado,
		&conexion, &peso, &medicion,
		&s.TiempoWarning, &s.TiempoDanger, &alcanzable,
	)
	if err != nil {
		return Scale{}, err
	}

	s.UltimaConexion = fromMillis(conexion)
	s.UltimaMedicion = fromMillis(medicion)
	if peso.Valid {
		p := peso.Float64
		s.UltimoPeso = &p
	}
	if alcanzable.Valid {
		a := alcanzable.Bool
		s.Alcanzable = &a
	}
	return s, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
