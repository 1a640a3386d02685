package handler

import (
	"mediamatch/internal/app/i18n"
	"mediamatch/internal/app/match"
	"mediamatch/internal/app/media"
	"mediamatch/internal/configs"
)

// AppDeps bundles everything the handlers need, injected from main.
type AppDeps struct {
	Config     *configs.AppConfig
	Registry   *match.Registry
	Identity   media.IdentityProvider
	Translator *i18n.Translator
	Sessions   *SessionTracker
}
