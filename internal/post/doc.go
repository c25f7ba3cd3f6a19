// Package post は投稿APIの内部実装を提供する。
//
// 認証トークンの発行・失効と、単一の投稿コレクションに対する
// CRUD・いいね・コメント操作を担当する。各操作はSQLiteへの
// 1回のラウンドトリップで完結し、複数文にまたがるロールバックを持たない。
package post
