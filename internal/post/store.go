package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrPostNotFound は指定されたIDの投稿が存在しないことを示す。
var ErrPostNotFound = errors.New("投稿が見つかりません")

// Post は1件の投稿を表す。
type Post struct {
	// ID は投稿の一意識別子（UUID）。
	ID string
	// Email は投稿者のメールアドレス。
	Email string
	// Text は投稿本文。
	Text string
	// ImageURL は添付画像のURL。未添付の場合は空文字列。
	ImageURL string
	// Likes はいいね数。負数にはならない。
	Likes int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// Comments は投稿に紐づくコメントの一覧（追加順）。
	Comments []Comment
}

// Comment は投稿に埋め込まれる1件のコメントを表す。
// 独立したライフサイクルを持たず、親の投稿とともに削除される。
type Comment struct {
	// Email はコメント投稿者のメールアドレス。
	Email string
	// Text はコメント本文。
	Text string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// Store は投稿コレクションへの永続化操作を提供する。
// 各メソッドは単一のSQL文で完結し、ストア側の原子性に依存する。
type Store struct {
	db *sql.DB
}

// OpenStore はSQLiteデータベースを開き、スキーマを適用したStoreを返す。
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteは単一ライターのため接続を1本に固定する
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("外部キー制約の有効化に失敗: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// CreatePost は新しい投稿を挿入する。
func (s *Store) CreatePost(ctx context.Context, p Post) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, email, text, image_url) VALUES (?, ?, ?, ?)`,
		p.ID, p.Email, p.Text, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("投稿の挿入に失敗: %w", err)
	}
	return nil
}

// GetPost は指定されたIDの投稿をコメント込みで取得する。
// 投稿が存在しない場合はErrPostNotFoundを返す。
func (s *Store) GetPost(ctx context.Context, id string) (Post, error) {
	var p Post
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, text, image_url, likes, created_at FROM posts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Email, &p.Text, &p.ImageURL, &p.Likes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("投稿の取得に失敗: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT email, text, created_at FROM comments WHERE post_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return Post{}, fmt.Errorf("コメントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	p.Comments = []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.Email, &c.Text, &c.CreatedAt); err != nil {
			return Post{}, fmt.Errorf("コメントの読み取りに失敗: %w", err)
		}
		p.Comments = append(p.Comments, c)
	}
	if err := rows.Err(); err != nil {
		return Post{}, fmt.Errorf("コメントの読み取りに失敗: %w", err)
	}
	return p, nil
}

// ListPosts はすべての投稿をコメント込みで取得する。
// フィルタもページネーションも行わない。
func (s *Store) ListPosts(ctx context.Context) ([]Post, error) {
	return s.listPosts(ctx,
		`SELECT id, email, text, image_url, likes, created_at FROM posts ORDER BY created_at DESC, id`,
	)
}

// ListPostsByEmail は指定された投稿者の投稿をコメント込みで取得する。
// 該当する投稿がない場合は空のスライスを返す。
func (s *Store) ListPostsByEmail(ctx context.Context, email string) ([]Post, error) {
	return s.listPosts(ctx,
		`SELECT id, email, text, image_url, likes, created_at FROM posts WHERE email = ? ORDER BY created_at DESC, id`,
		email,
	)
}

// listPosts は投稿を検索し、各投稿にコメントを結合して返す共通処理。
func (s *Store) listPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []Post{}
	index := make(map[string]int)
	ids := []any{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Email, &p.Text, &p.ImageURL, &p.Likes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗: %w", err)
		}
		p.Comments = []Comment{}
		index[p.ID] = len(posts)
		ids = append(ids, p.ID)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿の読み取りに失敗: %w", err)
	}
	if len(posts) == 0 {
		return posts, nil
	}

	placeholders := "?"
	for i := 1; i < len(ids); i++ {
		placeholders += ", ?"
	}
	commentRows, err := s.db.QueryContext(ctx,
		`SELECT post_id, email, text, created_at FROM comments WHERE post_id IN (`+placeholders+`) ORDER BY id`,
		ids...,
	)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗: %w", err)
	}
	defer func() { _ = commentRows.Close() }()

	for commentRows.Next() {
		var postID string
		var c Comment
		if err := commentRows.Scan(&postID, &c.Email, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("コメントの読み取りに失敗: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	if err := commentRows.Err(); err != nil {
		return nil, fmt.Errorf("コメントの読み取りに失敗: %w", err)
	}
	return posts, nil
}

// UpsertPost は指定されたIDの投稿を置き換える。
// 投稿が存在しない場合はそのIDで新規作成する（upsert）。
func (s *Store) UpsertPost(ctx context.Context, p Post) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, email, text, image_url) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, text = excluded.text, image_url = excluded.image_url`,
		p.ID, p.Email, p.Text, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("投稿のupsertに失敗: %w", err)
	}
	return nil
}

// DeletePost は指定されたIDの投稿を削除し、削除件数（0または1）を返す。
// 該当する投稿がなくてもエラーにはしない。
func (s *Store) DeletePost(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// IncrementLikes は指定された投稿のいいね数を1増やし、更新後の投稿を返す。
// 加算は単一のUPDATE文で行われ、並行リクエスト間で更新が失われることはない。
// 投稿が存在しない場合はErrPostNotFoundを返す。
func (s *Store) IncrementLikes(ctx context.Context, id string) (Post, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET likes = likes + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return Post{}, fmt.Errorf("いいねの加算に失敗: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Post{}, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return Post{}, ErrPostNotFound
	}
	return s.GetPost(ctx, id)
}

// DecrementLikes は指定された投稿のいいね数を1減らし、更新後の投稿を返す。
// いいね数が0の場合は何もしない。likes > 0 の判定はWHERE句で
// 原子的に評価されるため、並行して呼ばれても負数にはならない。
// 投稿が存在しない場合はErrPostNotFoundを返す。
func (s *Store) DecrementLikes(ctx context.Context, id string) (Post, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET likes = likes - 1 WHERE id = ? AND likes > 0`,
		id,
	)
	if err != nil {
		return Post{}, fmt.Errorf("いいねの減算に失敗: %w", err)
	}
	return s.GetPost(ctx, id)
}

// AppendComment は指定された投稿の末尾にコメントを追加し、更新後の投稿を返す。
// 投稿の存在確認と挿入は単一のINSERT文で行う。
// 投稿が存在しない場合はErrPostNotFoundを返す。
func (s *Store) AppendComment(ctx context.Context, postID string, c Comment) (Post, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (post_id, email, text)
		 SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM posts WHERE id = ?)`,
		postID, c.Email, c.Text, postID,
	)
	if err != nil {
		return Post{}, fmt.Errorf("コメントの追加に失敗: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Post{}, fmt.Errorf("挿入件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return Post{}, ErrPostNotFound
	}
	return s.GetPost(ctx, postID)
}
