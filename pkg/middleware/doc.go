// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Cookieで運ばれる認証トークンの発行と検証、パニックリカバリ、
// CORS設定など、サーバー全体で共通して使用するミドルウェアを含む。
package middleware
