package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memoryReserver struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memoryReserver) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryReserver) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func idempotentHandler(reserver KeyReserver, calls *int) http.Handler {
	return Idempotency(reserver, time.Hour, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
	}))
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRejectsRepeatedKey(t *testing.T) {
	calls := 0
	h := idempotentHandler(&memoryReserver{}, &calls)

	assert.Equal(t, http.StatusCreated, post(h, "/loans/1/payments", "abc").Code)

	dup := post(h, "/loans/1/payments", "abc")
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), "Idempotency-Key")

	assert.Equal(t, http.StatusCreated, post(h, "/loans/2/payments", "abc").Code, "keys are scoped per path")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyWithoutHeader(t *testing.T) {
	calls := 0
	h := idempotentHandler(&memoryReserver{}, &calls)

	post(h, "/loans/1/payments", "")
	post(h, "/loans/1/payments", "")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsLongKey(t *testing.T) {
	calls := 0
	h := idempotentHandler(&memoryReserver{}, &calls)

	assert.Equal(t, http.StatusBadRequest, post(h, "/loans/1/payments", strings.Repeat("k", 300)).Code)
	assert.Zero(t, calls)
}

func TestIdempotencyFailsOpen(t *testing.T) {
	calls := 0
	h := idempotentHandler(&memoryReserver{err: errors.New("redis down")}, &calls)

	assert.Equal(t, http.StatusCreated, post(h, "/loans/1/payments", "abc").Code)
	assert.Equal(t, http.StatusCreated, post(h, "/loans/1/payments", "abc").Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyNilReserver(t *testing.T) {
	calls := 0
	h := idempotentHandler(nil, &calls)

	post(h, "/loans/1/payments", "abc")
	post(h, "/loans/1/payments", "abc")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"validation error", http.StatusBadRequest},
		{"loan not payable", http.StatusConflict},
		{"database error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h := Idempotency(&memoryReserver{}, time.Hour, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(tt.status)
					return
				}
				w.WriteHeader(http.StatusCreated)
			}))

			assert.Equal(t, tt.status, post(h, "/loans/1/payments", "retry-me").Code)
			assert.Equal(t, http.StatusCreated, post(h, "/loans/1/payments", "retry-me").Code, "retry after failure")
			assert.Equal(t, http.StatusConflict, post(h, "/loans/1/payments", "retry-me").Code, "held after success")
			assert.Equal(t, 2, calls)
		})
	}
}

func TestIdempotencyKeepsKeyWhenHandlerWritesBodyOnly(t *testing.T) {
	reserver := &memoryReserver{}
	h := Idempotency(reserver, time.Hour, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	assert.Equal(t, http.StatusOK, post(h, "/loans/1/payments", "abc").Code)
	assert.True(t, reserver.keys["/loans/1/payments|abc"])
}
