package config

import (
	"github.com/gorilla/sessions"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB    *gorm.DB
	Store *sessions.CookieStore
)

func InitDB(cfg *Config) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func InitSessions(cfg *Config) {
	Store = sessions.NewCookieStore([]byte(cfg.SessionSecret))
	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 8,
		HttpOnly: true,
	}
}
