package upgrade

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/flork/flork-operator/internal/constants"
)

// maxPauseBody bounds the pre-upgrade request body.
const maxPauseBody = 64

// Pauser is the pause surface exposed over HTTP.
type Pauser interface {
	PreUpgrade(d time.Duration) Outcome
	PostUpgrade() Outcome
}

// HookHandlers serves the upgrade hook endpoints.
type HookHandlers struct {
	log             logr.Logger
	pauser          Pauser
	defaultDuration time.Duration
}

// NewHookHandlers returns handlers backed by pauser. An empty pre-upgrade body
// pauses for defaultDuration.
func NewHookHandlers(log logr.Logger, pauser Pauser, defaultDuration time.Duration) *HookHandlers {
	if defaultDuration <= 0 {
		defaultDuration = constants.DefaultPauseDurationSeconds * time.Second
	}
	return &HookHandlers{
		log:             log.WithName("upgrade-hooks"),
		pauser:          pauser,
		defaultDuration: defaultDuration,
	}
}

// PreUpgrade handles PUT <pre-upgrade path> with a text body of integer seconds.
func (h *HookHandlers) PreUpgrade() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requirePut(w, r) {
			return
		}

		d, err := h.parseDuration(r.Body)
		if err != nil {
			h.log.Info("Rejected pre-upgrade request", "error", err.Error())
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		outcome := h.pauser.PreUpgrade(d)
		h.log.Info("Handled pre-upgrade request", "duration", d, "outcome", outcome.String())
		writeOutcome(w, outcome, constants.PathPreUpgrade)
	})
}

// PostUpgrade handles PUT <post-upgrade path>. The body is ignored.
func (h *HookHandlers) PostUpgrade() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requirePut(w, r) {
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxPauseBody))

		outcome := h.pauser.PostUpgrade()
		h.log.Info("Handled post-upgrade request", "outcome", outcome.String())
		writeOutcome(w, outcome, constants.PathPostUpgrade)
	})
}

func (h *HookHandlers) parseDuration(body io.Reader) (time.Duration, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxPauseBody+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read body: %w", err)
	}
	if len(raw) > maxPauseBody {
		return 0, fmt.Errorf("body must be at most %d bytes", maxPauseBody)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return h.defaultDuration, nil
	}
	seconds, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pause duration %q is not an integer number of seconds", text)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("pause duration must be greater than 0, got %d", seconds)
	}
	if seconds > constants.MaxDurationSeconds {
		return 0, fmt.Errorf("pause duration must be at most %d seconds, got %d", constants.MaxDurationSeconds, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func requirePut(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPut {
		return true
	}
	w.Header().Set("Allow", http.MethodPut)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeOutcome(w http.ResponseWriter, outcome Outcome, location string) {
	status := outcome.HTTPStatus()
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if status == http.StatusCreated {
		w.Header().Set("Location", location)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, outcome.String()+"\n")
}
