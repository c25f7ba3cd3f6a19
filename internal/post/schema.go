package post

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。投稿と、投稿に埋め込まれるコメントの2テーブルを持つ。
const schema = `
CREATE TABLE IF NOT EXISTS posts (
    -- 投稿の一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 投稿者のメールアドレス
    email TEXT NOT NULL,
    -- 投稿本文
    text TEXT NOT NULL,
    -- 添付画像のURL（任意）
    image_url TEXT NOT NULL DEFAULT '',
    -- いいね数。負数にはならない
    likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comments (
    -- コメントの連番。投稿内での表示順を兼ねる
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- コメント先の投稿ID
    post_id TEXT NOT NULL,
    -- コメント投稿者のメールアドレス
    email TEXT NOT NULL,
    -- コメント本文
    text TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

-- 投稿者のメールアドレスでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_posts_email
    ON posts(email);

-- 投稿に紐づくコメントの取得を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_comments_post_id
    ON comments(post_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
