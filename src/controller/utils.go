package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	"positionledger/src/model"

	logger "github.com/sirupsen/logrus"
)

type ExceptionWriter interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Failure describes a best-effort step that failed without failing its request.
type Failure struct {
	Service string
	Module  string
	Method  string
	Level   string
	UserID  uint
	Err     error
	Context map[string]interface{}
}

// NormalizeSymbol upper-cases and trims a watchlist symbol.
//
//	" reliance " -> "RELIANCE"
//	"nifty50"    -> "NIFTY50"
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Capture records a best-effort failure: it logs locally and, when repo is
// set, persists a model.Exception. It never returns an error.
func Capture(ctx context.Context, repo ExceptionWriter, f Failure) {
	if f.Err == nil {
		return
	}

	level := f.Level
	if level == "" {
		level = "warn"
	}

	var ctxJSON string
	if f.Context != nil {
		if b, e := json.Marshal(f.Context); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   f.Service,
		Module:    f.Module,
		Method:    f.Method,
		Message:   f.Err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}
	if f.UserID != 0 {
		uid := f.UserID
		exc.UserID = &uid
	}

	logger.WithFields(logger.Fields{
		"service": f.Service,
		"module":  f.Module,
		"method":  f.Method,
		"level":   level,
		"user_id": f.UserID,
	}).WithError(f.Err).Warn("Best-effort step failed")

	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
