package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edunotas/edunotas-api/internal/document"
	"github.com/edunotas/edunotas-api/internal/repository"
	"github.com/edunotas/edunotas-api/pkg/kvstore"
)

var testKeys = repository.DocumentKeys{App: "edunotas_asistencia_v1", Noise: "edunotas_ruido_v1", Mode: "edunotas_modo_v1"}

type fakeWall struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeWall() *fakeWall {
	return &fakeWall{now: time.UnixMilli(1_700_000_000_000)}
}

func (w *fakeWall) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

func (w *fakeWall) Advance(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = w.now.Add(d)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("st%d", n)
	}
}

func newDocumentRepo(store kvstore.Store) *repository.DocumentRepository {
	return repository.NewDocumentRepository(store, testKeys, document.Defaults{ClassCount: 2, NegMinutes: 5, PosMinutes: 5}, nil, nil)
}

func newClassroomService(t *testing.T, store kvstore.Store, wall *fakeWall) *ClassroomService {
	t.Helper()
	svc := NewClassroomService(newDocumentRepo(store), nil, nil, nil)
	svc.wall = wall.Now
	svc.newID = sequentialIDs()
	require.NoError(t, svc.Load(context.Background()))
	return svc
}
