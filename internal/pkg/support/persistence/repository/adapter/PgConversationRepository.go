package adapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgConversationRepository struct {
	pool Querier
}

func NewPgConversationRepository(pool Querier) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

var _ repository.ConversationRepository = (*PgConversationRepository)(nil)

const conversationColumns = `id::text, status, COALESCE(assigned_employee_id, ''), COALESCE(guest_token, ''),
	COALESCE(customer_id, ''), customer_name, customer_phone, last_message_at, last_message_preview,
	unread_count, created_at`

// EnsureSchema creates the support schema when missing.
func (r *PgConversationRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errors.New("PgConversationRepository: nil pool")
	}
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: ensure support schema: %w", err)
	}
	return nil
}

func (r *PgConversationRepository) CreateConversation(ctx context.Context, c support.Conversation) (support.Conversation, error) {
	if r == nil || r.pool == nil {
		return support.Conversation{}, errors.New("PgConversationRepository: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO support.conversation (id, status, guest_token, customer_id, customer_name, customer_phone, created_at)
		VALUES ($1::uuid, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
		RETURNING `+conversationColumns,
		c.ID, string(c.Status), c.Customer.GuestToken, c.Customer.CustomerID, c.CustomerName, c.CustomerPhone, c.CreatedAt,
	)
	return scanConversation(row)
}

func (r *PgConversationRepository) GetConversation(ctx context.Context, id string) (support.Conversation, error) {
	if r == nil || r.pool == nil {
		return support.Conversation{}, errors.New("PgConversationRepository: nil pool")
	}
	if _, err := uuid.Parse(id); err != nil {
		return support.Conversation{}, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM support.conversation WHERE id = $1::uuid`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return support.Conversation{}, repository.ErrNotFound
	}
	return c, err
}

func (r *PgConversationRepository) ListCustomerConversationIDs(ctx context.Context, customerID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgConversationRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text
		FROM support.conversation
		WHERE customer_id = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func (r *PgConversationRepository) ListConversations(ctx context.Context) ([]support.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgConversationRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM support.conversation
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []support.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return convs, nil
}

// SaveMessage inserts the message only if the sender may currently write, locking the
// conversation row so a concurrent claim or release cannot interleave.
func (r *PgConversationRepository) SaveMessage(ctx context.Context, m support.Message) (support.Message, error) {
	if r == nil || r.pool == nil {
		return support.Message{}, errors.New("PgConversationRepository: nil pool")
	}
	var payload *string
	if m.HasPayload() {
		p := string(m.Payload)
		payload = &p
	}
	unread := 0
	if m.SenderRole == support.RoleCustomer {
		unread = 1
	}
	employeeID := ""
	if m.EmployeeID != nil {
		employeeID = *m.EmployeeID
	}

	err := r.pool.QueryRow(ctx, `
		WITH conv AS (
			SELECT id FROM support.conversation
			WHERE id = $1::uuid AND (
				$2 IN ('CUSTOMER', 'SYSTEM')
				OR ($2 = 'AI' AND status = 'AI')
				OR ($2 = 'EMP' AND status = 'EMP' AND assigned_employee_id = $3)
			)
			FOR UPDATE
		), ins AS (
			INSERT INTO support.message (conversation_id, sender_role, employee_id, content, payload, created_at)
			SELECT id, $2, NULLIF($3, ''), $4, $5::jsonb, $6 FROM conv
			RETURNING id, created_at
		)
		UPDATE support.conversation c
		SET last_message_at = ins.created_at,
		    last_message_preview = $7,
		    unread_count = c.unread_count + $8,
		    updated_at = now()
		FROM ins
		WHERE c.id = $1::uuid
		RETURNING ins.id, ins.created_at
	`, m.ConversationID, string(m.SenderRole), employeeID, m.Content, payload, m.CreatedAt, m.Preview(), unread,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return support.Message{}, repository.ErrWriteRejected
	}
	if err != nil {
		return support.Message{}, err
	}
	return m, nil
}

func (r *PgConversationRepository) GetMessagesPage(ctx context.Context, conversationID string, beforeID int64, size int) ([]support.Message, bool, error) {
	if r == nil || r.pool == nil {
		return nil, false, errors.New("PgConversationRepository: nil pool")
	}
	if size <= 0 {
		size = 20
	}
	if beforeID < 0 {
		beforeID = 0
	}
	// One extra row tells whether an older page exists.
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id::text, sender_role, COALESCE(employee_id, ''), content, payload, created_at
		FROM support.message
		WHERE conversation_id = $1::uuid AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, conversationID, beforeID, size+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var msgs []support.Message
	for rows.Next() {
		var (
			msg        support.Message
			role       string
			employeeID string
			payload    []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &employeeID, &msg.Content, &payload, &msg.CreatedAt); err != nil {
			return nil, false, err
		}
		msg.SenderRole = support.SenderRole(role)
		if employeeID != "" {
			msg.EmployeeID = &employeeID
		}
		if len(payload) > 0 {
			msg.Payload = payload
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, false, rows.Err()
	}
	if len(msgs) > size {
		return msgs[:size], false, nil
	}
	return msgs, true, nil
}

func (r *PgConversationRepository) ClaimConversation(ctx context.Context, id string, employeeID string) (support.Conversation, error) {
	if r == nil || r.pool == nil {
		return support.Conversation{}, errors.New("PgConversationRepository: nil pool")
	}
	if _, err := uuid.Parse(id); err != nil {
		return support.Conversation{}, repository.ErrNotFound
	}
	// Re-claiming an owned conversation is idempotent; any other owner blocks the update.
	row := r.pool.QueryRow(ctx, `
		UPDATE support.conversation
		SET status = 'EMP', assigned_employee_id = $2, updated_at = now()
		WHERE id = $1::uuid AND (status <> 'EMP' OR assigned_employee_id = $2)
		RETURNING `+conversationColumns,
		id, employeeID,
	)
	return r.conditional(ctx, id, row)
}

func (r *PgConversationRepository) ReleaseConversation(ctx context.Context, id string, employeeID string, to support.Status) (support.Conversation, error) {
	if r == nil || r.pool == nil {
		return support.Conversation{}, errors.New("PgConversationRepository: nil pool")
	}
	if _, err := uuid.Parse(id); err != nil {
		return support.Conversation{}, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE support.conversation
		SET status = $3, assigned_employee_id = NULL, updated_at = now()
		WHERE id = $1::uuid AND status = 'EMP' AND assigned_employee_id = $2
		RETURNING `+conversationColumns,
		id, employeeID, string(to),
	)
	return r.conditional(ctx, id, row)
}

func (r *PgConversationRepository) EscalateConversation(ctx context.Context, id string) (support.Conversation, error) {
	if r == nil || r.pool == nil {
		return support.Conversation{}, errors.New("PgConversationRepository: nil pool")
	}
	if _, err := uuid.Parse(id); err != nil {
		return support.Conversation{}, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE support.conversation
		SET status = 'WAITING_EMP', updated_at = now()
		WHERE id = $1::uuid AND status = 'AI'
		RETURNING `+conversationColumns,
		id,
	)
	return r.conditional(ctx, id, row)
}

func (r *PgConversationRepository) MarkRead(ctx context.Context, id string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgConversationRepository: nil pool")
	}
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE support.conversation
		SET unread_count = 0
		WHERE id = $1::uuid
	`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// conditional resolves a conditional UPDATE: no row means either a missing conversation or a state conflict.
func (r *PgConversationRepository) conditional(ctx context.Context, id string, row pgx.Row) (support.Conversation, error) {
	c, err := scanConversation(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return support.Conversation{}, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM support.conversation WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
		return support.Conversation{}, err
	}
	if !exists {
		return support.Conversation{}, repository.ErrNotFound
	}
	return support.Conversation{}, repository.ErrConflict
}

func scanConversation(row pgx.Row) (support.Conversation, error) {
	var (
		c          support.Conversation
		status     string
		assignee   string
		lastAt     pgtype.Timestamptz
		createdAt  time.Time
		guestToken string
		customerID string
	)
	if err := row.Scan(&c.ID, &status, &assignee, &guestToken, &customerID, &c.CustomerName, &c.CustomerPhone,
		&lastAt, &c.LastMessagePreview, &c.UnreadCount, &createdAt); err != nil {
		return support.Conversation{}, err
	}
	c.Status = support.Status(status)
	if assignee != "" {
		c.AssignedEmployeeID = &assignee
	}
	c.Customer = support.CustomerRef{GuestToken: guestToken, CustomerID: customerID}
	if lastAt.Valid {
		t := lastAt.Time
		c.LastMessageAt = &t
	}
	c.CreatedAt = createdAt
	return c, nil
}
