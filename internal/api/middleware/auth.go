package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"derivbot/pkg/crypto"
)

// DashboardAuth - middleware аутентификации дашборда.
//
// Один оператор, один пароль: клиент передает пароль в заголовке
// X-Dashboard-Password, сервер сверяет его с bcrypt хешем из конфига.
// Если хеш не задан, аутентификация отключена (локальное развертывание).
//
// bcrypt сравнение выполняется в constant-time, timing attack на
// сам заголовок не дает информации о пароле.
func DashboardAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			password := r.Header.Get("X-Dashboard-Password")
			if password == "" {
				// Fallback на Basic auth (пароль, логин игнорируется)
				if _, pass, ok := r.BasicAuth(); ok {
					password = pass
				}
			}

			if password == "" || !crypto.CheckPasswordMatch(password, passwordHash) {
				w.Header().Set("WWW-Authenticate", `Basic realm="Dashboard"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// debugUsername и debugPassword защищают debug/pprof endpoints.
// Загружаются из DEBUG_USERNAME и DEBUG_PASSWORD.
var (
	debugUsername = os.Getenv("DEBUG_USERNAME")
	debugPassword = os.Getenv("DEBUG_PASSWORD")
)

// DebugAuth - Basic auth для debug endpoints.
// Без настроенных credentials доступ разрешен только в development.
func DebugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if debugUsername == "" || debugPassword == "" {
			if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Debug endpoints disabled. Set DEBUG_USERNAME and DEBUG_PASSWORD.", http.StatusForbidden)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Constant-time сравнение против timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(debugUsername)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(debugPassword)) == 1

		if !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Debug endpoints"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
