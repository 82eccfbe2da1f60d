package server

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"boardrush/server/handler"
)

// Route はルーティングを組み立てます。スパン名にはパスではなくパターンを使います。
func Route(rooms *handler.RoomsHandler, profiles *handler.ProfileHandler, accept *handler.AcceptHandler) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, otelhttp.NewHandler(h, pattern))
	}
	handle("POST /rooms", http.HandlerFunc(rooms.HandleCreate))
	handle("GET /rooms/{code}", http.HandlerFunc(rooms.HandleGet))
	handle("POST /rooms/{code}/join", http.HandlerFunc(rooms.HandleJoin))
	handle("POST /rooms/{code}/bots", http.HandlerFunc(rooms.HandleAddBot))
	handle("POST /rooms/{code}/start", http.HandlerFunc(rooms.HandleStart))
	handle("GET /rooms/{code}/qr", http.HandlerFunc(rooms.HandleQR))
	handle("GET /players/{id}/progress", http.HandlerFunc(profiles.HandleProgress))
	handle("GET /ws", accept)
	mux.Handle("GET /health", handler.NewHealthHandler())
	return mux
}
