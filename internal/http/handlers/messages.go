package handlers

import (
	"context"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/middleware"
)

const (
	msgMissingToken = "missing_token"
	msgNoFile       = "no_file"
	msgFileTooLarge = "file_too_large"
	msgInvalidJSON  = "invalid_json"
	msgInvalidRun   = "invalid_run"
	msgTimeout      = "timeout"
	msgInvalidToken = "invalid_token"
	msgInternal     = "internal"
)

var messages = map[string]map[string]string{
	"en": {
		msgMissingToken: "Missing Replicate token",
		msgNoFile:       "No file",
		msgFileTooLarge: "File too large",
		msgInvalidJSON:  "Invalid JSON body",
		msgInvalidRun:   "model or version and input are required",
		msgTimeout:      "Timeout waiting prediction",
		msgInvalidToken: "Invalid token",
		msgInternal:     "Internal error",
	},
	"pt": {
		msgMissingToken: "Token do Replicate ausente",
		msgNoFile:       "Nenhum arquivo",
		msgFileTooLarge: "Arquivo muito grande",
		msgInvalidJSON:  "Corpo JSON inválido",
		msgInvalidRun:   "model ou version e input são obrigatórios",
		msgTimeout:      "Tempo esgotado aguardando a predição",
		msgInvalidToken: "Token inválido",
		msgInternal:     "Erro interno",
	},
}

func message(ctx context.Context, key string) string {
	if m, ok := messages[middleware.LocaleFromContext(ctx)]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := messages["en"][key]; ok {
		return s
	}
	return key
}
