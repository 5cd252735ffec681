package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"guildgate/internal/domain"
	"guildgate/internal/identity"
	"guildgate/internal/logger"
	"guildgate/internal/queue"
	"guildgate/internal/security"
)

const (
	verificationCompleteMessage = "Verification complete! You may close this window and return to Discord."
	bannerMessage               = "Verification service is running. Use the link posted in your server to verify."
)

// OAuthCallbackHandler turns an OAuth authorization code into a queued
// verification request
type OAuthCallbackHandler struct {
	provider identity.Provider
	states   security.StateCodec
	queue    queue.Queue
	newID    func() string
	now      func() time.Time
}

// NewOAuthCallbackHandler creates a new callback handler
func NewOAuthCallbackHandler(provider identity.Provider, states security.StateCodec, q queue.Queue) *OAuthCallbackHandler {
	return &OAuthCallbackHandler{
		provider: provider,
		states:   states,
		queue:    q,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// HandleCallback handles GET /oauth/callback?code=&state=&error=
func (h *OAuthCallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	code := query.Get("code")
	oauthErr := query.Get("error")

	if oauthErr != "" {
		logger.WarnContext(ctx, "OAuth callback returned an error", "error", oauthErr)
		writePage(w, failurePage("OAuth error: "+oauthErr))
		return
	}
	if code == "" {
		logger.WarnContext(ctx, "OAuth callback without code")
		writePage(w, failurePage("No code provided."))
		return
	}

	// The raw state may be a signed token and is never logged
	guildID, err := h.states.Decode(query.Get("state"))
	if err != nil {
		logger.WarnContext(ctx, "Rejected OAuth callback with invalid state", "error", err)
		writePage(w, failurePage("Invalid verification link. Please use the link posted in your server."))
		return
	}
	logger.InfoContext(ctx, "OAuth callback received", "guild_id", guildID)

	token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		writePage(w, failurePage(providerFailure(err)))
		return
	}
	user, err := h.provider.FetchUser(ctx, token)
	if err != nil {
		writePage(w, failurePage(providerFailure(err)))
		return
	}
	guilds, err := h.provider.FetchGuilds(ctx, token)
	if err != nil {
		writePage(w, failurePage(providerFailure(err)))
		return
	}

	userID, err := domain.ParseSnowflake(user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Identity provider returned an invalid user id", "user_id", user.ID, "error", err)
		writePage(w, failurePage("Failed to get user info: invalid user id"))
		return
	}

	observed := make([]string, 0, len(guilds))
	for _, g := range guilds {
		observed = append(observed, g.ID)
	}

	req := &domain.VerificationRequest{
		ID:                   h.newID(),
		UserID:               userID,
		Username:             user.Username,
		Discriminator:        user.Discriminator,
		ObservedCommunityIDs: observed,
		TargetCommunityID:    guildID,
		EnqueuedAt:           h.now().UTC(),
	}
	if err := h.queue.Enqueue(ctx, req); err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue verification request", "request_id", req.ID, "error", err)
		writePage(w, failurePage("Could not queue your verification. Please try again."))
		return
	}

	logger.InfoContext(ctx, "Verification request queued",
		"request_id", req.ID,
		"guild_id", guildID,
		"user_id", userID,
		"username", user.Username,
		"observed_guilds", len(observed),
	)
	writePage(w, successPage(verificationCompleteMessage))
}

// HandleVerifyLink handles GET /verify/{guildID} by redirecting to the
// provider consent page
func (h *OAuthCallbackHandler) HandleVerifyLink(w http.ResponseWriter, r *http.Request) {
	guildID, err := domain.ParseSnowflake(mux.Vars(r)["guildID"])
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return
	}
	state, err := h.states.Encode(guildID)
	if err != nil {
		logger.Error("Failed to encode OAuth state", "guild_id", guildID, "error", err)
		http.Error(w, "Failed to build verification link", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// HandleRoot serves the static banner page
func (h *OAuthCallbackHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writePage(w, successPage(bannerMessage))
}

// HandleHealth reports liveness
func (h *OAuthCallbackHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

// providerFailure quotes the provider's response body after a per-call prefix
func providerFailure(err error) string {
	var perr *identity.ProviderError
	if !errors.As(err, &perr) {
		return "Failed to contact the identity provider: " + err.Error()
	}
	switch perr.Operation {
	case identity.OperationToken:
		return "Failed to get token: " + perr.Body
	case identity.OperationUser:
		return "Failed to get user info: " + perr.Body
	case identity.OperationGuilds:
		return "Failed to get guilds: " + perr.Body
	}
	return perr.Error()
}

// RegisterRoutes registers the verification HTTP routes
func RegisterRoutes(router *mux.Router, handler *OAuthCallbackHandler) {
	router.HandleFunc("/oauth/callback", handler.HandleCallback).Methods(http.MethodGet)
	router.HandleFunc("/verify/{guildID}", handler.HandleVerifyLink).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handler.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/", handler.HandleRoot).Methods(http.MethodGet)
}
