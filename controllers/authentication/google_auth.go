package authentication

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"wander-stories-backend/config"
	"wander-stories-backend/models/users"
)

var GoogleOauthConfig *oauth2.Config

// InitGoogleOauth wires the OAuth config from the environment. Safe to
// skip when the Google provider is not configured; the routes then
// answer 503.
func InitGoogleOauth(cfg *config.Config) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return
	}
	GoogleOauthConfig = &oauth2.Config{
		RedirectURL:  cfg.GoogleRedirectURL,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// HandleGoogleLogin initiates the Google OAuth login flow.
func HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if GoogleOauthConfig == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}
	url := GoogleOauthConfig.AuthCodeURL("google")
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback exchanges the code, resolves the Google profile,
// upserts the matching user row and issues a service token.
func HandleGoogleCallback(w http.ResponseWriter, r *http.Request, secret []byte) {
	if GoogleOauthConfig == nil {
		http.Error(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}
	if r.FormValue("state") != "google" {
		log.Println("Invalid OAuth state")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := GoogleOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Printf("code exchange failed: %v", err)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	srv, err := goauth.NewService(r.Context(),
		option.WithTokenSource(GoogleOauthConfig.TokenSource(r.Context(), token)))
	if err != nil {
		log.Printf("userinfo service: %v", err)
		http.Error(w, "Failed to fetch user info", http.StatusInternalServerError)
		return
	}
	info, err := srv.Userinfo.Get().Context(r.Context()).Do()
	if err != nil || info.Id == "" {
		log.Printf("userinfo fetch: %v", err)
		http.Error(w, "Failed to fetch user info", http.StatusInternalServerError)
		return
	}

	var user users.User
	err = config.DB.Where("provider = ? AND external_id = ?", "google", info.Id).First(&user).Error
	if err != nil {
		user = users.User{
			Name:       info.Name,
			Email:      info.Email,
			Role:       "user",
			Provider:   "google",
			ExternalID: info.Id,
		}
		if err := config.DB.Create(&user).Error; err != nil {
			log.Printf("create google user: %v", err)
			http.Error(w, "Error creating user", http.StatusInternalServerError)
			return
		}
	}

	session, _ := config.Store.Get(r, "session-name")
	session.Values["user_id"] = user.ID
	if err := session.Save(r, w); err != nil {
		log.Printf("save session: %v", err)
	}

	tokenString, err := GenerateToken(user, secret, 24*time.Hour)
	if err != nil {
		http.Error(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":  user,
		"token": tokenString,
	})
}
