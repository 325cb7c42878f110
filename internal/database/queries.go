package database

// Message queue queries
const (
	insertQueueEntryQuery = `
		INSERT INTO message_queue (
			client_id, destination, body, template, status, attempts, scheduled_at
		) VALUES (?, ?, ?, ?, 'pending', 0, ?)
	`

	selectPendingQuery = `
		SELECT id, client_id, destination, body, template, status, attempts,
		       scheduled_at, channel_message_id, last_error, created_at, updated_at
		FROM message_queue
		WHERE status = 'pending'
		  AND (scheduled_at IS NULL OR scheduled_at <= CURRENT_TIMESTAMP)
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	claimSendingQuery = `
		UPDATE message_queue
		SET status = 'sending', attempts = attempts + 1
		WHERE id = ? AND status = 'pending'
	`

	markSentQuery = `
		UPDATE message_queue
		SET status = 'sent', channel_message_id = ?
		WHERE id = ? AND status = 'sending'
	`

	markFailedQuery = `
		UPDATE message_queue
		SET status = 'failed', last_error = ?
		WHERE id = ? AND status IN ('sending', 'pending')
	`

	selectRecentQuery = `
		SELECT q.id, q.client_id, q.destination, q.body, q.template, q.status,
		       q.attempts, q.scheduled_at, q.channel_message_id, q.last_error,
		       q.created_at, q.updated_at, COALESCE(c.name, '')
		FROM message_queue q
		LEFT JOIN clients c ON c.id = q.client_id
		ORDER BY q.created_at DESC, q.id DESC
		LIMIT ?
	`

	selectEntryByIDQuery = `
		SELECT id, client_id, destination, body, template, status, attempts,
		       scheduled_at, channel_message_id, last_error, created_at, updated_at
		FROM message_queue
		WHERE id = ?
	`
)

// Client and debt queries
const (
	insertClientQuery = `
		INSERT INTO clients (name, phone, monthly_amount, signup_date, active)
		VALUES (?, ?, ?, ?, ?)
	`

	selectClientByIDQuery = `
		SELECT id, name, phone, monthly_amount, signup_date, active
		FROM clients
		WHERE id = ?
	`

	selectDebtorsQuery = `
		SELECT c.id, c.name, COALESCE(c.phone, ''),
		       SUM(CASE WHEN p.status = 'pending' THEN p.amount ELSE 0 END) AS amount_due,
		       SUM(CASE WHEN p.status = 'pending' THEN 1 ELSE 0 END) AS pending_count
		FROM clients c
		JOIN payments p ON p.client_id = c.id AND p.year = ? AND p.month = ?
		WHERE c.active = TRUE
		GROUP BY c.id
		HAVING pending_count > 0
		ORDER BY amount_due DESC
	`

	insertPaymentQuery = `
		INSERT INTO payments (client_id, year, month, amount, status)
		VALUES (?, ?, ?, ?, ?)
	`
)
