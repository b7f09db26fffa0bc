package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/camden-git/faceattend/models"
)

// AdminKeyHeader carries the plain admin key on gallery-changing requests.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey rejects requests whose key does not match the configured
// bcrypt hash. The key may also be sent as "Authorization: Bearer <key>".
// With no hash configured every request passes.
func RequireAdminKey(key models.AdminKey) func(http.Handler) http.Handler {
	if !key.Configured() {
		log.Println("handlers: Warning - ADMIN_KEY_HASH not set, admin endpoints are open")
	}
	return func(next http.Handler) http.Handler {
		if !key.Configured() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(AdminKeyHeader)
			if supplied == "" {
				parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					supplied = strings.TrimSpace(parts[1])
				}
			}
			if supplied == "" {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Admin key required")
				return
			}
			if !key.Check(supplied) {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody caps request bodies; reads beyond the limit fail and are
// answered with 413.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteAPIError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "The uploaded data exceeds the maximum size limit")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
