package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/joho/godotenv"

	game "boardrush/game/domain"
	"boardrush/game/turn"
	"boardrush/netplay"
	"boardrush/server/application"
	"boardrush/server/client"
	"boardrush/utils"
)

const maxRetryElapsed = 2 * time.Minute

var errGameOver = errors.New("game over")

type seat struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	code := os.Getenv("ROOM_CODE")
	if code == "" {
		slog.Error("ROOM_CODE is required")
		os.Exit(1)
	}
	name := utils.GetEnvDefault("BOT_NAME", "Bot")
	botCount := utils.GetEnvInt("BOT_COUNT", 1)
	tick := utils.GetEnvDuration("BOT_TICK", 500*time.Millisecond)

	machine, err := application.MachineFromEnv()
	if err != nil {
		slog.Error("failed to build rules", "err", err)
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://%s:%s", addr, port)
	slog.Info("starting bots", "count", botCount, "server", baseURL, "room", code)

	var wg sync.WaitGroup
	for i := range botCount {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			botName := name
			if botCount > 1 {
				botName = fmt.Sprintf("%s %d", name, id+1)
			}
			runBot(ctx, baseURL, code, botName, machine, tick)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, baseURL, code, name string, machine *turn.Machine, tick time.Duration) {
	logger := slog.With("bot", name)

	s, err := backoff.Retry(ctx, func() (seat, error) {
		return joinRoom(ctx, baseURL, code, name)
	}, retryOptions(logger, "join")...)
	if err != nil {
		logger.Error("failed to join room", "err", err)
		return
	}
	self, err := game.ParsePlayerID(s.PlayerID)
	if err != nil {
		logger.Error("server returned a bad player id", "err", err)
		return
	}
	logger = logger.With("playerID", self)

	wsURL := fmt.Sprintf("ws%s/ws?token=%s", baseURL[len("http"):], url.QueryEscape(s.Token))
	for ctx.Err() == nil {
		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			conn, _, err := websocket.Dial(ctx, wsURL, nil)
			return conn, err
		}, retryOptions(logger, "dial")...)
		if err != nil {
			logger.Error("giving up on server", "err", err)
			return
		}
		logger.Info("connected")

		err = botSession(ctx, conn, self, machine, tick)
		if errors.Is(err, errGameOver) {
			logger.Info("game finished")
			return
		}
		if ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
		}
	}
}

func retryOptions(logger *slog.Logger, op string) []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxRetryElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("retrying", "op", op, "err", err, "in", next)
		}),
	}
}

// joinRoom はロビーに席を取ってトークンを受け取ります。4xx はやり直しても変わらないので打ち切ります。
func joinRoom(ctx context.Context, baseURL, code, name string) (seat, error) {
	body, err := json.Marshal(map[string]string{"name": name, "startupName": name + " Robotics"})
	if err != nil {
		return seat{}, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/rooms/"+url.PathEscape(code)+"/join", bytes.NewReader(body))
	if err != nil {
		return seat{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return seat{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("join: %s", res.Status)
		if res.StatusCode < http.StatusInternalServerError {
			return seat{}, backoff.Permanent(err)
		}
		return seat{}, err
	}
	var s seat
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return seat{}, backoff.Permanent(err)
	}
	return s, nil
}

// botSession は1本の接続が切れるか試合が終わるまで遊びます。
func botSession(ctx context.Context, conn *websocket.Conn, self game.PlayerID, machine *turn.Machine, tick time.Duration) error {
	defer conn.CloseNow()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := func(ctx context.Context, data []byte) error {
		return conn.Write(ctx, websocket.MessageBinary, data)
	}
	player := client.NewPlayer(self, machine, application.NewRuleBotController(machine), send)
	loop, err := netplay.NewLoop(netplay.LoopConfig{Handler: player})
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = loop.DrainTimeout(time.Second) }()

	// 受信ループ
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- fmt.Errorf("read: %w", err)
				return
			}
			if err := loop.Submit(ctx, client.Inbound(data)); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-player.Done():
			conn.Close(websocket.StatusNormalClosure, "game over")
			return errGameOver
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := loop.Submit(ctx, client.Tick{}); err != nil {
				return err
			}
		}
	}
}
