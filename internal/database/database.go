// Package database implements the durable message backlog and the client
// records the dispatch core reads, on a single sqlite file.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"payreminder/internal/migrations"
	"payreminder/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Queue operations

// EnqueueMessage persists a new backlog entry in pending state and returns
// its assigned id.
func (d *Database) EnqueueMessage(ctx context.Context, entry *models.QueueEntry) (int64, error) {
	encryptedDestination, err := d.encryptor.EncryptIfEnabled(entry.Destination)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt destination: %w", err)
	}

	encryptedBody, err := d.encryptor.EncryptIfEnabled(entry.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt body: %w", err)
	}

	var scheduledAt interface{}
	if entry.ScheduledAt != nil {
		scheduledAt = entry.ScheduledAt.UTC()
	}

	var result sql.Result
	err = withRetry(ctx, func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, insertQueueEntryQuery,
			entry.ClientID, encryptedDestination, encryptedBody, entry.Template, scheduledAt)
		return execErr
	}, "enqueue message")
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}

	entry.ID = id
	entry.Status = models.QueueStatusPending
	return id, nil
}

// FetchPending returns up to limit dispatchable entries ordered oldest
// first, excluding entries scheduled for the future.
func (d *Database) FetchPending(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	rows, err := d.db.QueryContext(ctx, selectPendingQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := d.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending entries: %w", err)
	}

	return entries, nil
}

// MarkSending claims an entry for dispatch: it transitions pending->sending
// and increments attempts in one conditional update, so two dispatchers can
// never both claim the same entry. Returns false when the entry was already
// claimed or is no longer pending.
func (d *Database) MarkSending(ctx context.Context, id int64) (bool, error) {
	var claimed bool
	err := withRetry(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, claimSendingQuery, id)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		claimed = rows == 1
		return nil
	}, "mark sending")
	if err != nil {
		return false, fmt.Errorf("failed to claim entry %d: %w", id, err)
	}
	return claimed, nil
}

// MarkSent records a successful delivery with the channel's message id.
func (d *Database) MarkSent(ctx context.Context, id int64, channelMessageID string) error {
	err := withRetry(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, markSentQuery, channelMessageID, id)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if rows == 0 {
			return fmt.Errorf("entry %d is not in sending state", id)
		}
		return nil
	}, "mark sent")
	if err != nil {
		return fmt.Errorf("failed to mark entry %d sent: %w", id, err)
	}
	return nil
}

// MarkFailed records a terminal delivery failure with its reason.
func (d *Database) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := withRetry(ctx, func() error {
		result, execErr := d.db.ExecContext(ctx, markFailedQuery, reason, id)
		if execErr != nil {
			return execErr
		}
		rows, execErr := result.RowsAffected()
		if execErr != nil {
			return execErr
		}
		if rows == 0 {
			return fmt.Errorf("entry %d is not in a failable state", id)
		}
		return nil
	}, "mark failed")
	if err != nil {
		return fmt.Errorf("failed to mark entry %d failed: %w", id, err)
	}
	return nil
}

// GetEntry retrieves one entry by id, or nil when it does not exist.
func (d *Database) GetEntry(ctx context.Context, id int64) (*models.QueueEntry, error) {
	row := d.db.QueryRowContext(ctx, selectEntryByIDQuery, id)

	entry, err := d.scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListRecent returns the newest entries joined with client display names.
func (d *Database) ListRecent(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	rows, err := d.db.QueryContext(ctx, selectRecentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var entry models.QueueEntry
		var encryptedDestination, encryptedBody string
		var scheduledAt sql.NullTime

		err := rows.Scan(
			&entry.ID,
			&entry.ClientID,
			&encryptedDestination,
			&encryptedBody,
			&entry.Template,
			&entry.Status,
			&entry.Attempts,
			&scheduledAt,
			&entry.ChannelMessageID,
			&entry.LastError,
			&entry.CreatedAt,
			&entry.UpdatedAt,
			&entry.ClientName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}

		if scheduledAt.Valid {
			t := scheduledAt.Time
			entry.ScheduledAt = &t
		}

		if err := d.decryptEntry(&entry, encryptedDestination, encryptedBody); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent entries: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanEntry(row rowScanner) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{}
	var encryptedDestination, encryptedBody string
	var scheduledAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.ClientID,
		&encryptedDestination,
		&encryptedBody,
		&entry.Template,
		&entry.Status,
		&entry.Attempts,
		&scheduledAt,
		&entry.ChannelMessageID,
		&entry.LastError,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	if scheduledAt.Valid {
		t := scheduledAt.Time
		entry.ScheduledAt = &t
	}

	if err := d.decryptEntry(entry, encryptedDestination, encryptedBody); err != nil {
		return nil, err
	}

	return entry, nil
}

func (d *Database) decryptEntry(entry *models.QueueEntry, encryptedDestination, encryptedBody string) error {
	destination, err := d.encryptor.DecryptIfEnabled(encryptedDestination)
	if err != nil {
		return fmt.Errorf("failed to decrypt destination: %w", err)
	}
	entry.Destination = destination

	body, err := d.encryptor.DecryptIfEnabled(encryptedBody)
	if err != nil {
		return fmt.Errorf("failed to decrypt body: %w", err)
	}
	entry.Body = body

	return nil
}

// Client operations

// SaveClient inserts a contact record and returns its id.
func (d *Database) SaveClient(ctx context.Context, client *models.Client) (int64, error) {
	encryptedPhone, err := d.encryptor.EncryptIfEnabled(client.Phone)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt phone: %w", err)
	}

	result, err := d.db.ExecContext(ctx, insertClientQuery,
		client.Name, encryptedPhone, client.MonthlyAmount, client.SignupDate, client.Active)
	if err != nil {
		return 0, fmt.Errorf("failed to save client: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted client id: %w", err)
	}

	client.ID = id
	return id, nil
}

// GetClient retrieves a contact record by id, or nil when absent.
func (d *Database) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	row := d.db.QueryRowContext(ctx, selectClientByIDQuery, id)

	client := &models.Client{}
	var encryptedPhone sql.NullString

	err := row.Scan(&client.ID, &client.Name, &encryptedPhone,
		&client.MonthlyAmount, &client.SignupDate, &client.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if encryptedPhone.Valid {
		phone, err := d.encryptor.DecryptIfEnabled(encryptedPhone.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt phone: %w", err)
		}
		client.Phone = phone
	}

	return client, nil
}

// AddPayment records a payment row for a billing period. The admin surface
// owns payments; the dispatch core only needs this to seed test fixtures
// and to read pending debt.
func (d *Database) AddPayment(ctx context.Context, clientID int64, year, month int, amount float64, status string) (int64, error) {
	result, err := d.db.ExecContext(ctx, insertPaymentQuery, clientID, year, month, amount, status)
	if err != nil {
		return 0, fmt.Errorf("failed to add payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted payment id: %w", err)
	}
	return id, nil
}

// ListDebtors returns active clients with pending payments for the given
// period, highest debt first.
func (d *Database) ListDebtors(ctx context.Context, year, month int) ([]models.Debtor, error) {
	rows, err := d.db.QueryContext(ctx, selectDebtorsQuery, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list debtors: %w", err)
	}
	defer rows.Close()

	var debtors []models.Debtor
	for rows.Next() {
		var debtor models.Debtor
		var encryptedPhone string

		if err := rows.Scan(&debtor.ClientID, &debtor.Name, &encryptedPhone,
			&debtor.AmountDue, &debtor.PendingCount); err != nil {
			return nil, fmt.Errorf("failed to scan debtor: %w", err)
		}

		phone, err := d.encryptor.DecryptIfEnabled(encryptedPhone)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt phone: %w", err)
		}
		debtor.Phone = phone
		debtor.Year = year
		debtor.Month = month

		debtors = append(debtors, debtor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debtors: %w", err)
	}

	return debtors, nil
}
