package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cashflow/internal/log"
	"cashflow/internal/services"
)

// screenRegistry holds the screens mounted by clients, keyed by id.
type screenRegistry struct {
	mu      sync.Mutex
	screens map[string]*services.Screen
	max     int
}

func newScreenRegistry(limit int) *screenRegistry {
	return &screenRegistry{screens: make(map[string]*services.Screen), max: limit}
}

func (reg *screenRegistry) create(build func(id string) *services.Screen) (*services.Screen, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.max > 0 && len(reg.screens) >= reg.max {
		return nil, fmt.Errorf("%w: limit %d", errTooManyScreens, reg.max)
	}
	sc := build(uuid.NewString())
	reg.screens[sc.ID] = sc
	return sc, nil
}

func (reg *screenRegistry) get(id string) (*services.Screen, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	sc, ok := reg.screens[id]
	return sc, ok
}

// remove unmounts and closes the screen.
func (reg *screenRegistry) remove(id string) bool {
	reg.mu.Lock()
	sc, ok := reg.screens[id]
	delete(reg.screens, id)
	reg.mu.Unlock()
	if ok {
		sc.Close()
	}
	return ok
}

func (reg *screenRegistry) closeAll() int {
	reg.mu.Lock()
	all := reg.screens
	reg.screens = make(map[string]*services.Screen)
	reg.mu.Unlock()
	for _, sc := range all {
		sc.Close()
	}
	return len(all)
}

func (reg *screenRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.screens)
}

type screenKey struct{}

// screenCtx resolves {screenID} into the request context.
func (s *Server) screenCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "screenID")
		sc, ok := s.screens.get(id)
		if !ok {
			respondErr(w, r, fmt.Errorf("%w: %s", errScreenNotFound, id))
			return
		}
		ctx := context.WithValue(r.Context(), screenKey{}, sc)
		ctx = log.IntoContext(ctx, log.FromContext(ctx).With(log.FieldSessionID, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func screenFrom(r *http.Request) *services.Screen {
	return r.Context().Value(screenKey{}).(*services.Screen)
}
