package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmojiNotFound is returned when no emoji has the requested id.
var ErrEmojiNotFound = errors.New("emoji not found")

type Emoji struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Char      string    `json:"char"`
	Category  int       `json:"category"`
	Keywords  string    `json:"keywords"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmojiInput carries writable fields. Nil pointers keep the stored value on update.
type EmojiInput struct {
	Name     *string `form:"name" json:"name"`
	Char     *string `form:"char" json:"char"`
	Category *int    `form:"category" json:"category"`
	Keywords *string `form:"keywords" json:"keywords"`
}

// apply copies the set fields of in onto e.
func (in EmojiInput) apply(e *Emoji) {
	if in.Name != nil {
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Char != nil {
		e.Char = strings.TrimSpace(*in.Char)
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.Keywords != nil {
		e.Keywords = strings.TrimSpace(*in.Keywords)
	}
}

type EmojiRepository interface {
	List(ctx context.Context, page, perPage int) ([]Emoji, int, error)
	Get(ctx context.Context, id int64) (*Emoji, error)
	Create(ctx context.Context, e Emoji) (*Emoji, error)
	Update(ctx context.Context, e Emoji) (*Emoji, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type PgEmojiRepository struct {
	db *pgxpool.Pool
}

func NewPgEmojiRepository(db *pgxpool.Pool) *PgEmojiRepository {
	return &PgEmojiRepository{db: db}
}

const emojiColumns = `id, name, "char", category, keywords, COALESCE(created_by, 0), created_at, updated_at`

func scanEmoji(row pgx.Row) (*Emoji, error) {
	var e Emoji
	if err := row.Scan(&e.ID, &e.Name, &e.Char, &e.Category, &e.Keywords, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmojiNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *PgEmojiRepository) List(ctx context.Context, page, perPage int) ([]Emoji, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+emojiColumns+` FROM emojis ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Emoji, 0, perPage)
	for rows.Next() {
		e, err := scanEmoji(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *e)
	}
	return items, total, rows.Err()
}

func (r *PgEmojiRepository) Get(ctx context.Context, id int64) (*Emoji, error) {
	return scanEmoji(r.db.QueryRow(ctx, `SELECT `+emojiColumns+` FROM emojis WHERE id=$1`, id))
}

func (r *PgEmojiRepository) Create(ctx context.Context, e Emoji) (*Emoji, error) {
	const q = `INSERT INTO emojis (name, "char", category, keywords, created_by)
VALUES ($1,$2,$3,$4,NULLIF($5, 0))
RETURNING ` + emojiColumns
	return scanEmoji(r.db.QueryRow(ctx, q, e.Name, e.Char, e.Category, e.Keywords, e.CreatedBy))
}

func (r *PgEmojiRepository) Update(ctx context.Context, e Emoji) (*Emoji, error) {
	const q = `UPDATE emojis SET name=$1, "char"=$2, category=$3, keywords=$4, updated_at=now()
WHERE id=$5
RETURNING ` + emojiColumns
	return scanEmoji(r.db.QueryRow(ctx, q, e.Name, e.Char, e.Category, e.Keywords, e.ID))
}

func (r *PgEmojiRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM emojis WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmojiNotFound
	}
	return nil
}

func (r *PgEmojiRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM emojis`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
