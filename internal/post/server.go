package post

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/friendnest/internal/config"
	"github.com/nao1215/friendnest/pkg/middleware"
)

// Server は投稿APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの起動設定。
	cfg config.Config
	// store は投稿コレクションへの永続化層。
	store *Store
}

// NewServer は新しい投稿APIサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg config.Config) (*Server, error) {
	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowOrigins))

	s := &Server{
		router: router,
		cfg:    cfg,
		store:  store,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラーを返す。http.Serverに渡して使用する。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はサーバーが保持するデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
// 更新系の操作とユーザー別の投稿一覧は認証を必須とし、
// 全件一覧と死活確認のみ認証なしでアクセスできる。
func (s *Server) setupRoutes() {
	// 認証不要のエンドポイント
	s.router.GET("/", s.handleRoot())
	s.router.GET("/health", s.handleHealth())
	s.router.POST("/jwt", s.handleIssueToken())
	s.router.GET("/logout", s.handleLogout())
	s.router.GET("/posts", s.handleListPosts())

	// 認証必須のエンドポイント
	authed := s.router.Group("", middleware.CookieAuth(s.cfg.JWTSecret))
	{
		// 投稿の作成
		authed.POST("/post", s.handleCreatePost())
		// 投稿者別の投稿一覧取得
		authed.GET("/post/:email", s.handleListPostsByEmail())
		// 投稿のupsert
		authed.PUT("/single-post/:id", s.handleUpsertPost())
		// 投稿の削除
		authed.DELETE("/posts/:id", s.handleDeletePost())
		// いいね
		authed.POST("/posts/:postId/like", s.handleLikePost())
		// いいね取り消し
		authed.POST("/posts/:postId/unlike", s.handleUnlikePost())
		// コメント追加
		authed.POST("/posts/:postId/comment", s.handleAddComment())
	}
}

// issueTokenRequest は認証トークン発行リクエストのJSON構造。
type issueTokenRequest struct {
	// Email はログインするユーザーのメールアドレス。
	Email string `json:"email" binding:"required"`
}

// postRequest は投稿の作成・upsertリクエストのJSON構造。
type postRequest struct {
	// Email は投稿者のメールアドレス。
	Email string `json:"email" binding:"required"`
	// Text は投稿本文。
	Text string `json:"text" binding:"required"`
	// ImageURL は添付画像のURL（任意）。
	ImageURL string `json:"image_url"`
}

// commentRequest はコメント追加リクエストのJSON構造。
type commentRequest struct {
	// Email はコメント投稿者のメールアドレス。
	Email string `json:"email" binding:"required"`
	// Text はコメント本文。
	Text string `json:"text" binding:"required"`
}

// commentResponse はコメントのJSONレスポンス構造。
type commentResponse struct {
	// Email はコメント投稿者のメールアドレス。
	Email string `json:"email"`
	// Text はコメント本文。
	Text string `json:"text"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	// ID は投稿の一意識別子。
	ID string `json:"id"`
	// Email は投稿者のメールアドレス。
	Email string `json:"email"`
	// Text は投稿本文。
	Text string `json:"text"`
	// ImageURL は添付画像のURL。
	ImageURL string `json:"image_url"`
	// Likes はいいね数。
	Likes int64 `json:"likes"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// Comments は投稿に紐づくコメントの一覧（追加順）。
	Comments []commentResponse `json:"comments"`
}

// toPostResponse はストアの投稿をJSONレスポンスに変換する。
func toPostResponse(p Post) postResponse {
	comments := make([]commentResponse, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, commentResponse{
			Email:     c.Email,
			Text:      c.Text,
			CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return postResponse{
		ID:        p.ID,
		Email:     p.Email,
		Text:      p.Text,
		ImageURL:  p.ImageURL,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Comments:  comments,
	}
}

// handleRoot は死活確認用の文字列を返すハンドラを返す。
func (s *Server) handleRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "friendnest server is running")
	}
}

// handleHealth はヘルスチェックを処理するハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "friendnest"})
	}
}

// handleIssueToken は認証トークンの発行を処理するハンドラを返す。
// 署名付きトークンを生成してHTTP-only Cookieに設定する。
func (s *Server) handleIssueToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req issueTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		token, err := middleware.GenerateToken(s.cfg.JWTSecret, req.Email, s.cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		middleware.SetTokenCookie(c, token, s.cfg.TokenTTL, s.cfg.Production)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// 認証トークンのCookieを即時失効させる。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearTokenCookie(c, s.cfg.Production)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleCreatePost は投稿の作成を処理するハンドラを返す。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		postID := uuid.New().String()
		if err := s.store.CreatePost(c.Request.Context(), Post{
			ID:       postID,
			Email:    req.Email,
			Text:     req.Text,
			ImageURL: req.ImageURL,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の作成に失敗しました"})
			log.Printf("投稿作成エラー: %v", err)
			return
		}

		// 作成した投稿をDBから取得してレスポンスを返す
		created, err := s.store.GetPost(c.Request.Context(), postID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toPostResponse(created))
	}
}

// handleListPosts は全投稿の一覧取得を処理するハンドラを返す。
func (s *Server) handleListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := s.store.ListPosts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿一覧の取得に失敗しました"})
			log.Printf("投稿一覧取得エラー: %v", err)
			return
		}

		responses := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			responses = append(responses, toPostResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleListPostsByEmail は投稿者別の投稿一覧取得を処理するハンドラを返す。
// 該当する投稿がない場合は空配列を返す（エラーにはしない）。
func (s *Server) handleListPostsByEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")

		posts, err := s.store.ListPostsByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿一覧の取得に失敗しました"})
			log.Printf("投稿一覧取得エラー: %v", err)
			return
		}

		responses := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			responses = append(responses, toPostResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleUpsertPost は投稿のupsertを処理するハンドラを返す。
// 指定されたIDの投稿が存在すれば置き換え、存在しなければそのIDで新規作成する。
func (s *Server) handleUpsertPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parsePostID(c, c.Param("id"))
		if !ok {
			return
		}

		var req postRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.store.UpsertPost(c.Request.Context(), Post{
			ID:       postID,
			Email:    req.Email,
			Text:     req.Text,
			ImageURL: req.ImageURL,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の更新に失敗しました"})
			log.Printf("投稿upsertエラー: %v", err)
			return
		}

		// upsert後の投稿をDBから取得してレスポンスを返す
		updated, err := s.store.GetPost(c.Request.Context(), postID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPostResponse(updated))
	}
}

// handleDeletePost は投稿の削除を処理するハンドラを返す。
// 該当する投稿がない場合も削除件数0の成功として扱う。
func (s *Server) handleDeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parsePostID(c, c.Param("id"))
		if !ok {
			return
		}

		deleted, err := s.store.DeletePost(c.Request.Context(), postID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の削除に失敗しました"})
			log.Printf("投稿削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

// handleLikePost はいいねを処理するハンドラを返す。
// いいね数を原子的に1増やし、更新後の投稿を返す。
func (s *Server) handleLikePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parsePostID(c, c.Param("postId"))
		if !ok {
			return
		}

		updated, err := s.store.IncrementLikes(c.Request.Context(), postID)
		if errors.Is(err, ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねに失敗しました"})
			log.Printf("いいねエラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPostResponse(updated))
	}
}

// handleUnlikePost はいいねの取り消しを処理するハンドラを返す。
// いいね数が0より大きい場合のみ1減らし、0の場合は投稿を変更せずに返す。
func (s *Server) handleUnlikePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parsePostID(c, c.Param("postId"))
		if !ok {
			return
		}

		updated, err := s.store.DecrementLikes(c.Request.Context(), postID)
		if errors.Is(err, ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねの取り消しに失敗しました"})
			log.Printf("いいね取り消しエラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPostResponse(updated))
	}
}

// handleAddComment はコメントの追加を処理するハンドラを返す。
// 投稿のコメント列の末尾に原子的に追加し、更新後の投稿を返す。
func (s *Server) handleAddComment() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := parsePostID(c, c.Param("postId"))
		if !ok {
			return
		}

		var req commentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		updated, err := s.store.AppendComment(c.Request.Context(), postID, Comment{
			Email: req.Email,
			Text:  req.Text,
		})
		if errors.Is(err, ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメントの追加に失敗しました"})
			log.Printf("コメント追加エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPostResponse(updated))
	}
}

// parsePostID はパスパラメータの投稿IDを検証する。
// UUIDとして解釈できない場合は400を返し、falseを返す。
// 形式不正はクライアントエラーであり、ストア障害（500）とは区別する。
func parsePostID(c *gin.Context, raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "投稿IDの形式が不正です"})
		return "", false
	}
	return id.String(), true
}
