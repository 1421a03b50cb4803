package config

import "time"

type Config struct {
	Web     Web
	Cors    Cors
	DB      DB
	Session Session
	Auth    Auth
	Stripe  Stripe
	Paypal  Paypal
	Oauth   Oauth
	Email   Email
	Media   Media
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:4000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:lms"`
	DisableTLS bool   `conf:"default:true"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Auth struct {
	// Requests per second tolerated on the login and signup endpoints,
	// per client address.
	LoginRPS   float64 `conf:"default:1"`
	LoginBurst int     `conf:"default:5"`
}

// Stripe is the primary payment gateway. An empty APISecret switches the
// purchase flow to the stub path: orders are still created but the client
// secret returned is a placeholder.
type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
}

// Paypal drives the alternate checkout flow. Unset credentials disable the
// paypal routes at startup.
type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000/auth/success"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:4000/api/auth/oauth-callback/google"`
}

// Email relays the contact form. Without an APIKey messages are logged to
// stdout instead of sent.
type Email struct {
	APIKey      string `conf:"mask"`
	FromAddress string `conf:"default:noreply@learnhub.dev"`
	FromName    string `conf:"default:LearnHub"`
	ContactTo   string
}

// Media holds the asset-host credentials used for uploads and signed video
// delivery. Unset credentials degrade to passthrough: stored references are
// returned as-is.
type Media struct {
	CloudName string
	APIKey    string `conf:"mask"`
	APISecret string `conf:"mask"`
	Folder    string `conf:"default:lms"`
}
