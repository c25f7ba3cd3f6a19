// 投稿APIサーバーのエントリポイント。
// 認証トークンの発行と、投稿のCRUD・いいね・コメント操作を提供する。
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/friendnest/internal/config"
	"github.com/nao1215/friendnest/internal/post"
)

func main() {
	cfg := config.Load()

	server, err := post.NewServer(cfg)
	if err != nil {
		log.Fatalf("サーバーの初期化に失敗: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("friendnestサーバーを起動します: :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("サーバーの起動に失敗: %v", err)
		}
	}()

	// シグナルを受けたらHTTPサーバーを停止し、その後にDB接続を閉じる
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("シャットダウンします...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("シャットダウンに失敗: %v", err)
	}
	if err := server.Close(); err != nil {
		log.Printf("データベースのクローズに失敗: %v", err)
	}
}
