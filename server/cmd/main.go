package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"boardrush/internal/telemetry"
	"boardrush/profile"
	"boardrush/server"
	"boardrush/server/application"
	"boardrush/server/auth"
	"boardrush/server/domain"
	"boardrush/server/handler"
	"boardrush/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// .env は任意です
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "boardrush",
		Level:       utils.GetEnvDefault("LOG_LEVEL", "info"),
		Endpoint:    os.Getenv(telemetry.EndpointEnv),
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "err", err)
		}
	}()

	machine, err := application.MachineFromEnv()
	if err != nil {
		return err
	}
	profiles, err := newProfileStore()
	if err != nil {
		return err
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	issuer, err := auth.NewIssuer([]byte(secret), "boardrush", utils.GetEnvDuration("TOKEN_TTL", auth.DefaultTTL))
	if err != nil {
		return err
	}

	factory := application.Factory(application.Config{
		Machine:            machine,
		Profiles:           profiles,
		Bots:               application.RuleBotFactory(machine),
		TurnTimeout:        utils.GetEnvDuration("TURN_TIMEOUT", application.DefaultTurnTimeout),
		ForfeitGrace:       utils.GetEnvDuration("FORFEIT_GRACE", application.DefaultForfeitGrace),
		CheckpointInterval: utils.GetEnvDuration("CHECKPOINT_INTERVAL", application.DefaultCheckpointInterval),
		BotDelay:           utils.GetEnvDuration("BOT_DELAY", application.DefaultBotDelay),
	})

	// ルームは roomsCtx で回し、HTTP を止めてから止めます
	roomsCtx, stopRooms := context.WithCancel(context.Background())
	defer stopRooms()
	pubsub := domain.NewSimplePubSub()
	roomManager := domain.NewSimpleRoomManager(roomsCtx, pubsub, factory)
	roomManager.SetLobbyIdleTimeout(utils.GetEnvDuration("LOBBY_IDLE_TIMEOUT", domain.DefaultLobbyIdleTimeout))

	endpointCfg := domain.EndpointConfig{
		PingInterval: utils.GetEnvDuration("HEARTBEAT_INTERVAL", domain.DefaultPingInterval),
		IdleTimeout:  utils.GetEnvDuration("IDLE_TIMEOUT", domain.DefaultIdleTimeout),
	}
	var origins []string
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	routes := server.Route(
		handler.NewRoomsHandler(roomManager, issuer, os.Getenv("JOIN_URL")),
		handler.NewProfileHandler(profiles, issuer),
		handler.NewAcceptHandler(pubsub, roomManager, issuer, endpointCfg, origins),
	)

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	s := server.NewServer(fmt.Sprintf("%s:%s", addr, port), routes)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(gctx, "server listening", "addr", s.Addr())
		return s.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(gctx, "shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "graceful shutdown failed", "err", err)
			if err := s.Close(); err != nil {
				slog.ErrorContext(shutdownCtx, "forced close failed", "err", err)
			}
		}
		stopRooms()
		roomManager.Wait()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server shutdown complete")
	return nil
}

func newProfileStore() (profile.Store, error) {
	switch backend := utils.GetEnvDefault("PROFILE_BACKEND", "memory"); backend {
	case "memory":
		return profile.NewMemoryStore(), nil
	case "dynamo":
		table := os.Getenv("DYNAMO_TABLE")
		if table == "" {
			return nil, errors.New("DYNAMO_TABLE is required for the dynamo profile backend")
		}
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(os.Getenv("AWS_REGION")),
		})
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
		return profile.NewDynamoStore(dynamodb.New(sess), table), nil
	default:
		return nil, fmt.Errorf("unknown PROFILE_BACKEND %q", backend)
	}
}
