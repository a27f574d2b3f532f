package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pianotech/tournee/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOverlay_WrapsDriverFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	driverErr := errors.New("disk I/O error")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO piano_overlays`)).WillReturnError(driverErr)

	repo := NewSQLitePianoRepo(mockDB)
	err = repo.SaveOverlay(context.Background(), &domain.Overlay{PianoID: "P7", Status: domain.PianoTop, UpdatedAt: time.Now()})

	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"P7"}, pe.IDs)
	assert.ErrorIs(t, err, driverErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDemoteActive_WrapsUpdateFailureWithIDs(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM campaigns WHERE institution = ?`)).
		WithArgs("conservatoire", "T2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("T1"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaigns SET status = 'planned'`)).
		WillReturnError(errors.New("database is locked"))

	repo := NewSQLiteCampaignRepo(mockDB)
	_, err = repo.DemoteActive(context.Background(), "conservatoire", "T2", time.Now())

	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"T1"}, pe.IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaign_NoRowsIsNotFound(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaigns WHERE id = ?`)).
		WithArgs("T404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewSQLiteCampaignRepo(mockDB)
	_, err = repo.GetByID(context.Background(), "T404")

	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
