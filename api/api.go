package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/background"
	"github.com/learnhub/lms/api/middleware"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/config"
	"github.com/learnhub/lms/core/admin"
	"github.com/learnhub/lms/core/auth"
	"github.com/learnhub/lms/core/contact"
	"github.com/learnhub/lms/core/course"
	"github.com/learnhub/lms/core/entitlement"
	"github.com/learnhub/lms/core/order"
	"github.com/learnhub/lms/core/progress"
	"github.com/learnhub/lms/core/user"
	"github.com/learnhub/lms/email"
	"github.com/learnhub/lms/media"
	"github.com/learnhub/lms/rate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Background       *background.Background
	Mailer           email.Mailer
	ContactTo        string
	Assets           *media.Service
	Paypal           *paypal.Client
	Stripe           *stripecl.API
	StripeCfg        config.Stripe
	Providers        map[string]auth.Provider
	LoginRedirectURL string
	AuthLimiter      *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admn := auth.Admin(cfg.Session)
	entitled := entitlement.Required(cfg.DB)
	limited := middleware.RateLimit(cfg.AuthLimiter)

	a.Handle(http.MethodPost, "/api/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/api/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/api/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/api/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/api/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/api/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodPost, "/api/users/avatar", user.HandleUploadAvatar(cfg.DB, cfg.Assets), authen)

	a.Handle(http.MethodGet, "/api/courses/owned", entitlement.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/api/courses/{course_id}/lessons/{index}/video", course.HandleShowLessonVideo(cfg.DB, cfg.Assets), authen, entitled)
	a.Handle(http.MethodPost, "/api/courses/{id}/purchase", order.HandlePurchase(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen)
	a.Handle(http.MethodGet, "/api/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/api/courses", course.HandleList(cfg.DB))

	a.Handle(http.MethodPost, "/api/orders/{id}/confirm", order.HandleConfirm(cfg.DB), authen)
	a.Handle(http.MethodPost, "/api/payments/webhook", order.HandleStripeWebhook(cfg.DB, cfg.StripeCfg, cfg.Log))
	a.Handle(http.MethodPost, "/api/payments/buy/{course_id}", order.HandleBuyNow(cfg.DB), authen)

	if cfg.Paypal != nil {
		a.Handle(http.MethodPost, "/api/orders/paypal/{course_id}", order.HandlePaypalCheckout(cfg.DB, cfg.Paypal), authen)
		a.Handle(http.MethodPost, "/api/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal), authen)
	}

	a.Handle(http.MethodGet, "/api/progress/{course_id}/next-lesson", progress.HandleNextLesson(cfg.DB), authen)
	a.Handle(http.MethodPost, "/api/progress/{course_id}/lesson/{lesson_index}", progress.HandleRecordWatch(cfg.DB), authen)
	a.Handle(http.MethodGet, "/api/progress/{course_id}", progress.HandleShow(cfg.DB), authen)

	a.Handle(http.MethodGet, "/api/admin/stats", admin.HandleStats(cfg.DB), admn)
	a.Handle(http.MethodGet, "/api/admin/users", user.HandleList(cfg.DB), admn)
	a.Handle(http.MethodGet, "/api/admin/orders", order.HandleListAll(cfg.DB), admn)
	a.Handle(http.MethodPost, "/api/admin/upload", admin.HandleUpload(cfg.Assets), admn)
	a.Handle(http.MethodGet, "/api/admin/courses", course.HandleList(cfg.DB), admn)
	a.Handle(http.MethodPost, "/api/admin/courses", course.HandleCreate(cfg.DB), admn)
	a.Handle(http.MethodPut, "/api/admin/courses/{id}", course.HandleUpdate(cfg.DB), admn)
	a.Handle(http.MethodDelete, "/api/admin/courses/{id}", course.HandleDelete(cfg.DB), admn)
	a.Handle(http.MethodPost, "/api/admin/courses/{id}/lessons", course.HandleCreateLesson(cfg.DB), admn)
	a.Handle(http.MethodDelete, "/api/admin/courses/{id}/lessons/{index}", course.HandleDeleteLesson(cfg.DB), admn)

	a.Handle(http.MethodPost, "/api/contact", contact.HandleSend(cfg.Mailer, cfg.ContactTo, cfg.Background))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
