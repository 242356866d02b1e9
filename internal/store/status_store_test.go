package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

type memoryBlobs struct {
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (m *memoryBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memoryBlobs) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func newTestStatusStore(t *testing.T, blobs BlobStorage) (*StatusStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStatusStore(db, blobs)
	store.newKey = func() string { return "fixed-key" }
	return store, mock
}

func TestFindDuplicateStatusMatchesExactText(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())

	mock.ExpectQuery(regexp.QuoteMeta("AND text = $2")).
		WithArgs(int64(1), "Sunset (1/2)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(44)))

	id, found, err := store.FindDuplicateStatus(context.Background(), 1, "Sunset (1/2)")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(44), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicateStatusReportsMissing(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())

	mock.ExpectQuery("SELECT id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, found, err := store.FindDuplicateStatus(context.Background(), 1, "new caption")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTxCreatesMediaThenThreadedStatuses(t *testing.T) {
	blobs := newMemoryBlobs()
	store, mock := newTestStatusStore(t, blobs)
	createdAt := time.Date(2019, time.May, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_attachments").
		WithArgs(int64(9), "media/9/fixed-key.jpg", "image/jpeg", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery("INSERT INTO statuses").
		WithArgs(int64(9), "first (1/2)", "", false, VisibilityPublic, "en", nil, createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(500)))
	mock.ExpectExec("UPDATE media_attachments").
		WithArgs(int64(500), int64(9), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO statuses").
		WithArgs(int64(9), "second (2/2)", "", false, VisibilityPublic, "en", int64(500), createdAt.Add(time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(501)))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store.BeginStatusTx(ctx)
	require.NoError(t, err)

	mediaID, err := tx.CreateMediaAttachment(ctx, CreateMediaAttachmentInput{
		AccountID:   9,
		FileName:    "photos/201905/IMG.JPG",
		ContentType: "image/jpeg",
		Data:        []byte{1, 2, 3},
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), mediaID)

	firstID, err := tx.CreateStatus(ctx, CreateStatusInput{
		AccountID:          9,
		Text:               "first (1/2)",
		Language:           "en",
		CreatedAt:          createdAt,
		MediaAttachmentIDs: []int64{mediaID},
	})
	require.NoError(t, err)

	_, err = tx.CreateStatus(ctx, CreateStatusInput{
		AccountID:   9,
		Text:        "second (2/2)",
		Language:    "en",
		InReplyToID: &firstID,
		CreatedAt:   createdAt.Add(time.Second),
	})
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(ctx))
	require.Contains(t, blobs.objects, "media/9/fixed-key.jpg")
	require.Empty(t, blobs.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTxRollbackRemovesUploadedBlobs(t *testing.T) {
	blobs := newMemoryBlobs()
	store, mock := newTestStatusStore(t, blobs)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO media_attachments").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO statuses").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := store.BeginStatusTx(ctx)
	require.NoError(t, err)

	_, err = tx.CreateMediaAttachment(ctx, CreateMediaAttachmentInput{
		AccountID:   2,
		FileName:    "a.png",
		ContentType: "image/png",
		Data:        []byte("png"),
	})
	require.NoError(t, err)

	_, err = tx.CreateStatus(ctx, CreateStatusInput{AccountID: 2, Text: "x", CreatedAt: time.Now()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")

	require.NoError(t, tx.Rollback(ctx))
	require.Equal(t, []string{"media/2/fixed-key.png"}, blobs.deleted)
	require.Empty(t, blobs.objects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTxRejectsPartialMediaAttach(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO statuses").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("UPDATE media_attachments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := store.BeginStatusTx(ctx)
	require.NoError(t, err)

	_, err = tx.CreateStatus(ctx, CreateStatusInput{
		AccountID:          2,
		Text:               "x",
		CreatedAt:          time.Now(),
		MediaAttachmentIDs: []int64{1, 2},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "attached 1 of 2")
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTxValidatesInput(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := store.BeginStatusTx(ctx)
	require.NoError(t, err)

	_, err = tx.CreateMediaAttachment(ctx, CreateMediaAttachmentInput{AccountID: 1, FileName: "a.jpg", ContentType: "image/jpeg"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = tx.CreateStatus(ctx, CreateStatusInput{AccountID: 1, Text: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = tx.CreateStatus(ctx, CreateStatusInput{AccountID: 1, Text: "x", CreatedAt: time.Now(), Visibility: "everyone"})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListIDsCreatedBeforePagesByID(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())
	cutoff := time.Date(2020, time.January, 1, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND id > $3")).
		WithArgs(int64(4), cutoff, int64(10), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)).AddRow(int64(12)))

	ids, err := store.ListIDsCreatedBefore(context.Background(), 4, cutoff, 10, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{11, 12}, ids)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = store.ListIDsCreatedBefore(context.Background(), 4, cutoff, 0, 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteStatusesRemovesMediaRowsFirst(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM media_attachments").
		WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM statuses").
		WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	deleted, err := store.DeleteStatuses(context.Background(), 4, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStatusesRollsBackOnFailure(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM media_attachments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM statuses").
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := store.DeleteStatuses(context.Background(), 4, []int64{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "lock timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAccountAttachesMedia(t *testing.T) {
	store, mock := newTestStatusStore(t, newMemoryBlobs())
	createdAt := time.Date(2019, time.May, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM statuses").
		WithArgs(int64(4), maxListLimit).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "text", "spoiler_text", "sensitive", "visibility", "language", "in_reply_to_id", "created_at",
		}).
			AddRow(int64(2), int64(4), "b (2/2)", "", false, "public", "en", int64(1), createdAt.Add(time.Second)).
			AddRow(int64(1), int64(4), "a (1/2)", "", false, "public", nil, nil, createdAt))
	mock.ExpectQuery("FROM media_attachments").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status_id", "file_key", "content_type", "file_size", "created_at"}).
			AddRow(int64(30), int64(1), "media/4/k.jpg", "image/jpeg", int64(10), createdAt))

	statuses, err := store.ListByAccount(context.Background(), 4, 1000)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Empty(t, statuses[0].Media)
	require.NotNil(t, statuses[0].InReplyToID)
	require.Equal(t, int64(1), *statuses[0].InReplyToID)
	require.Nil(t, statuses[1].InReplyToID)
	require.Len(t, statuses[1].Media, 1)
	require.Equal(t, "media/4/k.jpg", statuses[1].Media[0].FileKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
