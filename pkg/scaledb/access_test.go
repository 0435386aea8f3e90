package scaledb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created, err := db.Create(ctx, ScaleInput{IP: " 10.0.0.5 ", Nombre: "Andén 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "10.0.0.5", created.IP)
	assert.Equal(t, EstadoError, created.Estado)
	assert.Equal(t, DefaultTiempoWarning, created.TiempoWarning)
	assert.Equal(t, DefaultTiempoDanger, created.TiempoDanger)

	got, err := db.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Nil(t, got.UltimaConexion)
	assert.Nil(t, got.UltimoPeso)
	assert.Nil(t, got.Alcanzable)
}

func TestCreateValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Create(ctx, ScaleInput{IP: "", Nombre: "x"})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = db.Create(ctx, ScaleInput{IP: "10.0.0.1", Nombre: "  "})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCreateDuplicateIP(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Create(ctx, ScaleInput{IP: "10.0.0.5", Nombre: "a"})
	require.NoError(t, err)
	_, err = db.Create(ctx, ScaleInput{IP: "10.0.0.5", Nombre: "b"})
	require.ErrorIs(t, err, ErrDuplicateIP)
}

func TestListKeepsInsertOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	empty, err := db.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	a, err := db.Create(ctx, ScaleInput{IP: "10.0.0.1", Nombre: "a"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := db.Create(ctx, ScaleInput{IP: "10.0.0.2", Nombre: "b"})
	require.NoError(t, err)

	list, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, err := db.Create(ctx, ScaleInput{IP: "10.0.0.1", Nombre: "a"})
	require.NoError(t, err)
	_, err = db.Create(ctx, ScaleInput{IP: "10.0.0.2", Nombre: "b"})
	require.NoError(t, err)

	updated, err := db.Update(ctx, a.ID, ScaleInput{IP: "10.0.0.3", Nombre: "renamed", TiempoWarning: 10, TiempoDanger: 20})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", updated.IP)
	assert.Equal(t, "renamed", updated.Nombre)
	assert.Equal(t, 10, updated.TiempoWarning)
	assert.Equal(t, 20, updated.TiempoDanger)

	// Keeping its own IP is fine, taking another one is not.
	_, err = db.Update(ctx, a.ID, ScaleInput{IP: "10.0.0.3", Nombre: "again"})
	require.NoError(t, err)
	_, err = db.Update(ctx, a.ID, ScaleInput{IP: "10.0.0.2", Nombre: "clash"})
	require.ErrorIs(t, err, ErrDuplicateIP)

	_, err = db.Update(ctx, "missing", ScaleInput{IP: "10.0.0.9", Nombre: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	// An unknown id wins over a taken IP.
	_, err = db.Update(ctx, "missing", ScaleInput{IP: "10.0.0.2", Nombre: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, err := db.Create(ctx, ScaleInput{IP: "10.0.0.1", Nombre: "a"})
	require.NoError(t, err)

	require.NoError(t, db.Delete(ctx, a.ID))
	require.ErrorIs(t, db.Delete(ctx, a.ID), ErrNotFound)
	_, err = db.Get(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPoll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, err := db.Create(ctx, ScaleInput{IP: "10.0.0.1", Nombre: "a"})
	require.NoError(t, err)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	measured := at.Add(-time.Minute)
	weight := 12.5
	require.NoError(t, db.RecordPoll(ctx, a.ID, PollResult{OK: true, At: at, Weight: &weight, MeasuredAt: &measured}))

	got, err := db.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, EstadoOK, got.Estado)
	require.NotNil(t, got.UltimaConexion)
	assert.True(t, at.Equal(*got.UltimaConexion))
	require.NotNil(t, got.UltimoPeso)
	assert.InDelta(t, 12.5, *got.UltimoPeso, 1e-9)
	require.NotNil(t, got.UltimaMedicion)
	assert.True(t, measured.Equal(*got.UltimaMedicion))
	require.NotNil(t, got.Alcanzable)
	assert.True(t, *got.Alcanzable)

	// A failure keeps the last good data.
	unreachable := false
	require.NoError(t, db.RecordPoll(ctx, a.ID, PollResult{OK: false, At: at.Add(time.Minute), Reachable: &unreachable}))
	got, err = db.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, EstadoError, got.Estado)
	assert.True(t, at.Equal(*got.UltimaConexion))
	assert.InDelta(t, 12.5, *got.UltimoPeso, 1e-9)
	require.NotNil(t, got.Alcanzable)
	assert.False(t, *got.Alcanzable)

	require.ErrorIs(t, db.RecordPoll(ctx, "missing", PollResult{OK: true, At: at}), ErrNotFound)
}
