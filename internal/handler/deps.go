package handler

import (
	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
)

// AppDeps bundles the explicitly constructed resources the handlers need.
// Everything here is created once at server start and torn down at server
// stop; handlers never lazily initialize shared state.
type AppDeps struct {
	Hub      *chat.Hub
	Config   *configs.AppConfig
	Services chat.Services
	Messages *store.Messages
}
